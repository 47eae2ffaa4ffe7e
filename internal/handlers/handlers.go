package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"artbooru/api/internal/config"
	"artbooru/api/internal/queue"
	"artbooru/api/internal/repository"
	"artbooru/api/internal/service"
	"artbooru/api/internal/storage"
)

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	postService *service.PostService
	db          *pgxpool.Pool
	redis       *redis.Client
	store       *storage.ObjectStore
	posts       *repository.PostRepository
	labels      *repository.LabelRepository
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, redisClient *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	postRepo := repository.NewPostRepository(db)
	labelRepo := repository.NewLabelRepository(db)
	notifier := queue.NewNotifier(redisClient, cfg.Queue.Stream)
	posts := service.NewPostService(postRepo, labelRepo, store, notifier, cfg, log)

	return HandlerSet{
		log:         log,
		cfg:         cfg,
		postService: posts,
		db:          db,
		redis:       redisClient,
		store:       store,
		posts:       postRepo,
		labels:      labelRepo,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		posts := v1.Group("/posts")
		posts.POST("", h.CreatePost)
		posts.POST("/duplicates", h.CheckDuplicates)
		posts.DELETE("/:postId", h.DeletePost)
	}
}
