package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"artbooru/api/internal/models"
)

// Notifier enqueues similarity-indexing jobs on a redis stream. Delivery
// is at-least-once; the downstream indexer is never waited on.
type Notifier struct {
	client *redis.Client
	stream string
}

func NewNotifier(client *redis.Client, stream string) *Notifier {
	return &Notifier{
		client: client,
		stream: stream,
	}
}

// EnqueueIndexing publishes one job for the given post. Image URLs are
// filtered down to original-resolution variants before publishing, since
// previews carry no extra signal for similarity search.
func (n *Notifier) EnqueueIndexing(ctx context.Context, job models.IndexingJob) error {
	job.ImageURLs = FilterOriginalURLs(job.ImageURLs)

	urls, err := json.Marshal(job.ImageURLs)
	if err != nil {
		return fmt.Errorf("marshal image urls: %w", err)
	}

	_, err = n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"type":      "index",
			"postId":    job.PostID,
			"imageUrls": string(urls),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", n.stream, err)
	}
	return nil
}

// FilterOriginalURLs keeps only original-resolution variant URLs.
func FilterOriginalURLs(urls []string) []string {
	filtered := make([]string, 0, len(urls))
	for _, url := range urls {
		if url != "" && strings.Contains(url, models.OriginalImageSuffix) {
			filtered = append(filtered, url)
		}
	}
	return filtered
}
