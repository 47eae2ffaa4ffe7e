package service

import (
	"context"

	"artbooru/api/internal/models"
)

// PostStore is the relational-store port for posts. The production adapter
// is repository.PostRepository; tests use in-memory fakes.
type PostStore interface {
	// Create persists the post and its label associations, returning the
	// author's username.
	Create(ctx context.Context, post *models.Post) (string, error)
	Delete(ctx context.Context, postID string) error
	GetForAuthor(ctx context.Context, postID, authorID string) (models.Post, error)
	FindDuplicates(ctx context.Context, fingerprints []string, limit int) ([]models.DuplicatePost, error)
}

// LabelStore maintains tag/artist usage counters with upsert-on-increment
// semantics.
type LabelStore interface {
	Increment(ctx context.Context, kind models.LabelKind, names []string) error
	Decrement(ctx context.Context, kind models.LabelKind, names []string) error
}

// ObjectStorage is the blob-store port. UploadBatch must return one result
// per input, index-aligned, so partial failures can be compensated
// precisely; it makes a single attempt per buffer.
type ObjectStorage interface {
	UploadBatch(ctx context.Context, uploads []models.ObjectUpload) ([]models.ObjectUploadResult, error)
	DeleteBatch(ctx context.Context, urls []string) error
}

// IndexingNotifier hands a post off to the asynchronous similarity
// indexer. Enqueue only; the indexer itself is never waited on.
type IndexingNotifier interface {
	EnqueueIndexing(ctx context.Context, job models.IndexingJob) error
}
