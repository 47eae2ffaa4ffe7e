package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"artbooru/api/internal/models"
)

type postLister interface {
	CreatedSince(ctx context.Context, since time.Time) ([]models.IndexingJob, error)
}

type indexingNotifier interface {
	EnqueueIndexing(ctx context.Context, job models.IndexingJob) error
}

// Scheduler re-enqueues indexing jobs for recently created posts once a
// day. The queue is at-least-once, so posts whose first enqueue already
// succeeded are simply indexed again.
type Scheduler struct {
	cron     *cron.Cron
	posts    postLister
	notifier indexingNotifier
	log      zerolog.Logger
}

func NewScheduler(posts postLister, notifier indexingNotifier, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		posts:    posts,
		notifier: notifier,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 3 * * *", s.reindexSweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() context.CancelFunc {
	_, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	go func() {
		s.cron.Stop()
		cancel()
	}()
	return cancel
}

func (s *Scheduler) reindexSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobs, err := s.posts.CreatedSince(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		s.log.Error().Err(err).Msg("reindex sweep query failed")
		return
	}

	enqueued := 0
	for _, job := range jobs {
		if err := s.notifier.EnqueueIndexing(ctx, job); err != nil {
			s.log.Error().Err(err).Str("post_id", job.PostID).Msg("reindex enqueue failed")
			continue
		}
		enqueued++
	}

	s.log.Info().Int("posts", len(jobs)).Int("enqueued", enqueued).Msg("reindex sweep finished")
}
