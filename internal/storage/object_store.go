package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"artbooru/api/internal/config"
	"artbooru/api/internal/models"
)

// ObjectStore is the object-storage adapter for post images. Batch calls
// report per-object outcomes so the saga can compensate for exactly the
// writes that happened; the adapter itself never retries.
type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	bucket := s.cfg.BucketPosts
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// UploadBatch writes every buffer concurrently, one attempt each. The
// returned slice is index-aligned with the input; entries with a non-nil
// Err were not written. The first failure is also returned as err.
func (s *ObjectStore) UploadBatch(ctx context.Context, uploads []models.ObjectUpload) ([]models.ObjectUploadResult, error) {
	results := make([]models.ObjectUploadResult, len(uploads))

	var wg sync.WaitGroup
	for i, upload := range uploads {
		i, upload := i, upload
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := s.objectKey(upload.ObjectID)
			reader := bytes.NewReader(upload.Data)
			_, err := s.client.PutObject(ctx, s.cfg.BucketPosts, key, reader, int64(len(upload.Data)), minio.PutObjectOptions{
				ContentType: upload.ContentType,
			})
			if err != nil {
				results[i] = models.ObjectUploadResult{Err: fmt.Errorf("put object %s: %w", key, err)}
				return
			}
			results[i] = models.ObjectUploadResult{URL: s.PublicURL(key)}
		}()
	}
	wg.Wait()

	for _, result := range results {
		if result.Err != nil {
			return results, result.Err
		}
	}
	return results, nil
}

// DeleteBatch removes the objects behind the given public URLs. Used by
// compensations and post deletion; best-effort per object, the first
// failure is returned after every URL has been attempted.
func (s *ObjectStore) DeleteBatch(ctx context.Context, urls []string) error {
	var firstErr error
	for _, objectURL := range urls {
		key, err := s.objectKeyFromURL(objectURL)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := s.client.RemoveObject(ctx, s.cfg.BucketPosts, key, minio.RemoveObjectOptions{}); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove object %s: %w", key, err)
			}
		}
	}
	return firstErr
}

func (s *ObjectStore) objectKey(objectID string) string {
	return path.Join("posts", objectID+".png")
}

func (s *ObjectStore) objectKeyFromURL(objectURL string) (string, error) {
	prefix := s.baseURL() + "/" + s.cfg.BucketPosts + "/"
	if !strings.HasPrefix(objectURL, prefix) {
		return "", fmt.Errorf("url %q not under bucket %s", objectURL, s.cfg.BucketPosts)
	}
	return strings.TrimPrefix(objectURL, prefix), nil
}

func (s *ObjectStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL(), s.cfg.BucketPosts, key)
}

func (s *ObjectStore) baseURL() string {
	base := strings.TrimSuffix(s.cfg.Endpoint, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return base
}
