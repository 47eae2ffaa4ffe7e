package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"artbooru/api/internal/config"
	"artbooru/api/internal/ids"
	"artbooru/api/internal/media/pipeline"
	"artbooru/api/internal/media/sniffer"
	"artbooru/api/internal/models"
)

// Saga stages, in forward order. FAILED and REJECTED_DUPLICATE are
// absorbing and expressed as the returned error type.
const (
	stageTransforming   = "transforming"
	stageFingerprinting = "fingerprinting"
	stageDuplicateCheck = "duplicate_check"
	stageUploading      = "uploading"
	stagePersisting     = "persisting"
	stageNotifying      = "notifying"
)

const (
	maxDescriptionLength = 500
	maxLabelLength       = 30
	maxTagsPerPost       = 20
	maxArtistsPerPost    = 5
)

type CreatePostResult struct {
	PostID         string
	AuthorUsername string
	DuplicatePosts []models.DuplicatePost
}

// PostService runs the post-ingestion saga: transform, fingerprint,
// duplicate-gate, upload, persist, notify. One instance serves all
// requests; each call owns its own transient state.
type PostService struct {
	posts    PostStore
	labels   LabelStore
	store    ObjectStorage
	notifier IndexingNotifier
	pipeline *pipeline.Pipeline
	cfg      *config.AppConfig
	log      zerolog.Logger
}

func NewPostService(posts PostStore, labels LabelStore, store ObjectStorage, notifier IndexingNotifier, cfg *config.AppConfig, log zerolog.Logger) *PostService {
	return &PostService{
		posts:    posts,
		labels:   labels,
		store:    store,
		notifier: notifier,
		pipeline: pipeline.New(pipeline.Options{
			Workers:       cfg.Pipeline.Workers,
			PreviewWidth:  cfg.Pipeline.PreviewWidth,
			PreviewHeight: cfg.Pipeline.PreviewHeight,
		}),
		cfg: cfg,
		log: log,
	}
}

// stagedImage is one encoded variant staged for upload, flattened in input
// order with its fingerprint and eventual object id.
type stagedImage struct {
	pipeline.EncodedImage
	fingerprint string
	objectID    string
}

// CreatePost executes the saga. The returned error is one of *InputError,
// *DuplicateError or *StageError; by the time a *StageError surfaces,
// compensations for every committed step have been attempted and the
// wrapped cause is the original failure.
func (s *PostService) CreatePost(ctx context.Context, draft models.PostDraft, authorID string) (CreatePostResult, error) {
	logger := s.log.With().
		Str("author_id", authorID).
		Str("upload_id", draft.UploadID).
		Logger()

	if err := validateDraft(draft, s.cfg.Pipeline); err != nil {
		return CreatePostResult{}, err
	}

	// TRANSFORMING: nothing external has been touched, so a failure here
	// aborts with no compensation.
	sets, err := s.pipeline.Run(ctx, draft.Files, draft.NSFW)
	if err != nil {
		logger.Warn().Err(err).Str("stage", stageTransforming).Msg("pipeline rejected draft")
		return CreatePostResult{}, &InputError{Reason: "image transformation failed", Err: err}
	}

	// FINGERPRINTING
	staged := flattenVariants(sets)
	if err := fingerprintAll(ctx, staged, s.cfg.Pipeline.Workers); err != nil {
		return CreatePostResult{}, &StageError{Stage: stageFingerprinting, Err: err}
	}

	// DUPLICATE_CHECK: gate before any externally visible commit. Only
	// original-variant fingerprints are meaningful for dedup.
	matches, err := s.posts.FindDuplicates(ctx, originalFingerprints(staged), s.cfg.Saga.DuplicateSearchLimit)
	if err != nil {
		return CreatePostResult{}, &StageError{Stage: stageDuplicateCheck, Err: err}
	}
	if len(matches) > 0 && !draft.IgnoreDuplicates {
		logger.Info().Int("matches", len(matches)).Msg("draft rejected as duplicate")
		return CreatePostResult{}, &DuplicateError{Matches: matches}
	}

	// Commit point. From here the saga must run to completion or to its
	// compensations even if the caller disconnects: an orphaned upload or
	// row is worse than wasted compute after a dropped connection.
	ctx = context.WithoutCancel(ctx)
	comps := &compensationStack{}

	// UPLOADING
	uploads := make([]models.ObjectUpload, len(staged))
	for i, img := range staged {
		uploads[i] = models.ObjectUpload{
			ObjectID:    img.objectID,
			ContentType: "image/png",
			Data:        img.Data,
		}
	}
	urls, uploadErr := s.uploadWithRetry(ctx, uploads)
	if uploaded := nonEmpty(urls); len(uploaded) > 0 {
		comps.push("delete uploaded objects", func(ctx context.Context) error {
			return s.store.DeleteBatch(ctx, uploaded)
		})
	}
	if uploadErr != nil {
		comps.unwind(ctx, logger, stageUploading)
		return CreatePostResult{}, &StageError{Stage: stageUploading, Err: uploadErr}
	}

	// PERSISTING: counter increments and the post row are one logical
	// step; each external commit pushes its own compensation so the
	// unwind decrements only what was actually incremented.
	if err := s.labels.Increment(ctx, models.LabelTag, draft.Tags); err != nil {
		comps.unwind(ctx, logger, stagePersisting)
		return CreatePostResult{}, &StageError{Stage: stagePersisting, Err: err}
	}
	comps.push("decrement tag counters", func(ctx context.Context) error {
		return s.labels.Decrement(ctx, models.LabelTag, draft.Tags)
	})

	if err := s.labels.Increment(ctx, models.LabelArtist, draft.Artists); err != nil {
		comps.unwind(ctx, logger, stagePersisting)
		return CreatePostResult{}, &StageError{Stage: stagePersisting, Err: err}
	}
	comps.push("decrement artist counters", func(ctx context.Context) error {
		return s.labels.Decrement(ctx, models.LabelArtist, draft.Artists)
	})

	post := buildPost(draft, staged, urls, authorID)
	authorUsername, err := s.posts.Create(ctx, post)
	if err != nil {
		comps.unwind(ctx, logger, stagePersisting)
		return CreatePostResult{}, &StageError{Stage: stagePersisting, Err: err}
	}
	comps.push("delete post row", func(ctx context.Context) error {
		return s.posts.Delete(ctx, post.ID)
	})

	// NOTIFYING: the most expensive compensation path, deliberately last.
	job := models.IndexingJob{PostID: post.ID, ImageURLs: post.ImageURLs}
	notifyErr := retry(ctx, s.cfg.Saga.NotifyRetries, func(ctx context.Context) error {
		return s.notifier.EnqueueIndexing(ctx, job)
	})
	if notifyErr != nil {
		comps.unwind(ctx, logger, stageNotifying)
		return CreatePostResult{}, &StageError{Stage: stageNotifying, Err: notifyErr}
	}

	logger.Info().
		Str("post_id", post.ID).
		Int("images", len(draft.Files)).
		Int("duplicate_matches", len(matches)).
		Msg("post created")

	return CreatePostResult{
		PostID:         post.ID,
		AuthorUsername: authorUsername,
		DuplicatePosts: matches,
	}, nil
}

// CheckDuplicates reports existing posts whose fingerprints intersect the
// given set, without creating anything.
func (s *PostService) CheckDuplicates(ctx context.Context, fingerprints []string) ([]models.DuplicatePost, error) {
	return s.posts.FindDuplicates(ctx, fingerprints, s.cfg.Saga.DuplicateSearchLimit)
}

// DeletePost removes an author's post along with its label counter
// contributions and stored objects. Counter and object cleanup mirror the
// saga's compensations; their failures are logged, not surfaced, once the
// row itself is gone.
func (s *PostService) DeletePost(ctx context.Context, postID, authorID string) error {
	logger := s.log.With().Str("post_id", postID).Str("author_id", authorID).Logger()

	post, err := s.posts.GetForAuthor(ctx, postID, authorID)
	if err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)
	if err := s.posts.Delete(ctx, post.ID); err != nil {
		return fmt.Errorf("delete post row: %w", err)
	}

	if err := s.labels.Decrement(ctx, models.LabelTag, post.Tags); err != nil {
		logger.Error().Err(err).Msg("tag counter decrement failed")
	}
	if err := s.labels.Decrement(ctx, models.LabelArtist, post.Artists); err != nil {
		logger.Error().Err(err).Msg("artist counter decrement failed")
	}
	if err := s.store.DeleteBatch(ctx, post.ImageURLs); err != nil {
		logger.Error().Err(err).Msg("stored object cleanup failed")
	}

	logger.Info().Msg("post deleted")
	return nil
}

// uploadWithRetry re-attempts only the buffers that failed, up to the
// configured number of extra attempts. The returned slice is index-aligned
// with uploads; empty entries were never written.
func (s *PostService) uploadWithRetry(ctx context.Context, uploads []models.ObjectUpload) ([]string, error) {
	urls := make([]string, len(uploads))
	pending := make([]int, len(uploads))
	for i := range uploads {
		pending[i] = i
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.Saga.UploadRetries; attempt++ {
		batch := make([]models.ObjectUpload, len(pending))
		for j, idx := range pending {
			batch[j] = uploads[idx]
		}

		results, err := s.store.UploadBatch(ctx, batch)
		lastErr = err

		var stillPending []int
		for j, idx := range pending {
			if j < len(results) && results[j].Err == nil && results[j].URL != "" {
				urls[idx] = results[j].URL
				continue
			}
			stillPending = append(stillPending, idx)
			if j < len(results) && results[j].Err != nil && lastErr == nil {
				lastErr = results[j].Err
			}
		}
		pending = stillPending

		if len(pending) == 0 {
			return urls, nil
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("%d uploads unaccounted for", len(pending))
		}
	}
	return urls, lastErr
}

func validateDraft(draft models.PostDraft, cfg config.PipelineConfig) error {
	if len(draft.Files) == 0 {
		return &InputError{Reason: "at least one image is required"}
	}
	if cfg.MaxImagesPerPost > 0 && len(draft.Files) > cfg.MaxImagesPerPost {
		return &InputError{Reason: fmt.Sprintf("at most %d images per post", cfg.MaxImagesPerPost)}
	}
	if len(draft.Description) > maxDescriptionLength {
		return &InputError{Reason: fmt.Sprintf("description exceeds %d characters", maxDescriptionLength)}
	}
	if len(draft.Tags) > maxTagsPerPost {
		return &InputError{Reason: fmt.Sprintf("at most %d tags per post", maxTagsPerPost)}
	}
	if len(draft.Artists) > maxArtistsPerPost {
		return &InputError{Reason: fmt.Sprintf("at most %d artists per post", maxArtistsPerPost)}
	}
	for _, name := range append(append([]string{}, draft.Tags...), draft.Artists...) {
		if name == "" || len(name) > maxLabelLength {
			return &InputError{Reason: fmt.Sprintf("invalid label %q", name)}
		}
	}

	for _, file := range draft.Files {
		if len(file.Data) == 0 {
			return &InputError{Reason: fmt.Sprintf("file %q is empty", file.Name)}
		}
		if cfg.MaxImageSizeBytes > 0 && int64(len(file.Data)) > cfg.MaxImageSizeBytes {
			return &InputError{Reason: fmt.Sprintf("file %q exceeds %d bytes", file.Name, cfg.MaxImageSizeBytes)}
		}

		head := file.Data
		if len(head) > 512 {
			head = head[:512]
		}
		detected, err := sniffer.DetectHead(head)
		if err != nil {
			return &InputError{Reason: fmt.Sprintf("file %q is not a supported image", file.Name), Err: err}
		}
		declared := sniffer.NormalizeMimeType(file.ContentType)
		if declared != "" && declared != detected.MIME {
			return &InputError{Reason: fmt.Sprintf("file %q declares %s but contains %s", file.Name, declared, detected.MIME)}
		}
	}
	return nil
}

func flattenVariants(sets []pipeline.VariantSet) []*stagedImage {
	var staged []*stagedImage
	for _, set := range sets {
		for _, img := range set.Images {
			staged = append(staged, &stagedImage{
				EncodedImage: img,
				objectID:     uuid.NewString() + suffixFor(img.Variant),
			})
		}
	}
	return staged
}

func fingerprintAll(ctx context.Context, staged []*stagedImage, workers int) error {
	g, _ := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, img := range staged {
		img := img
		g.Go(func() error {
			img.fingerprint = pipeline.Fingerprint(img.Data)
			return nil
		})
	}
	return g.Wait()
}

func originalFingerprints(staged []*stagedImage) []string {
	var fingerprints []string
	for _, img := range staged {
		if img.Variant == pipeline.VariantOriginal {
			fingerprints = append(fingerprints, img.fingerprint)
		}
	}
	return fingerprints
}

func buildPost(draft models.PostDraft, staged []*stagedImage, urls []string, authorID string) *models.Post {
	post := &models.Post{
		ID:               ids.New(),
		Description:      draft.Description,
		NSFW:             draft.NSFW,
		SourceLink:       draft.SourceLink,
		Tags:             draft.Tags,
		Artists:          draft.Artists,
		AuthorID:         authorID,
		ModerationStatus: models.ModerationPending,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	for i, img := range staged {
		post.ImageURLs = append(post.ImageURLs, urls[i])
		post.ImageWidths = append(post.ImageWidths, img.Width)
		post.ImageHeights = append(post.ImageHeights, img.Height)
		post.Fingerprints = append(post.Fingerprints, img.fingerprint)
	}
	return post
}

func suffixFor(variant pipeline.Variant) string {
	switch variant {
	case pipeline.VariantPreview:
		return models.PreviewImageSuffix
	case pipeline.VariantNSFWPreview:
		return models.NSFWPreviewImageSuffix
	default:
		return models.OriginalImageSuffix
	}
}

func nonEmpty(urls []string) []string {
	var out []string
	for _, url := range urls {
		if url != "" {
			out = append(out, url)
		}
	}
	return out
}

func retry(ctx context.Context, extraAttempts int, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= extraAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}
