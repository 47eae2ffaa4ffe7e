package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"artbooru/api/internal/models"
)

var ErrPostNotFound = errors.New("post not found")

type PostRepository struct {
	pool *pgxpool.Pool
}

func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

// Create inserts the post row and its label associations in one
// transaction and returns the author's username. Label counters are not
// touched here; the saga maintains them through the label repository so
// increments stay paired with decrements.
func (r *PostRepository) Create(ctx context.Context, post *models.Post) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertPost = `
		INSERT INTO posts (
			id, description, nsfw, source_link, image_urls, image_widths,
			image_heights, fingerprints, author_id, moderation_status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err = tx.Exec(ctx, insertPost,
		post.ID,
		post.Description,
		post.NSFW,
		post.SourceLink,
		post.ImageURLs,
		post.ImageWidths,
		post.ImageHeights,
		post.Fingerprints,
		post.AuthorID,
		post.ModerationStatus,
	)
	if err != nil {
		return "", fmt.Errorf("insert post: %w", err)
	}

	for _, tag := range post.Tags {
		if _, err := tx.Exec(ctx, `INSERT INTO post_tags (post_id, tag_name) VALUES ($1, $2)`, post.ID, tag); err != nil {
			return "", fmt.Errorf("insert post tag %q: %w", tag, err)
		}
	}
	for _, artist := range post.Artists {
		if _, err := tx.Exec(ctx, `INSERT INTO post_artists (post_id, artist_name) VALUES ($1, $2)`, post.ID, artist); err != nil {
			return "", fmt.Errorf("insert post artist %q: %w", artist, err)
		}
	}

	var username string
	if err := tx.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, post.AuthorID).Scan(&username); err != nil {
		return "", fmt.Errorf("author lookup: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return username, nil
}

// Delete removes the post row and its label associations. The caller is
// responsible for decrementing label counters and removing stored objects.
func (r *PostRepository) Delete(ctx context.Context, postID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM post_tags WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("delete post tags: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM post_artists WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("delete post artists: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM posts WHERE id = $1`, postID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPostNotFound
	}

	return tx.Commit(ctx)
}

// GetForAuthor loads a post owned by the given author, including its label
// names, for author-initiated deletion.
func (r *PostRepository) GetForAuthor(ctx context.Context, postID, authorID string) (models.Post, error) {
	const query = `
		SELECT id, description, nsfw, source_link, image_urls, image_widths,
		       image_heights, fingerprints, author_id, moderation_status,
		       created_at, updated_at
		FROM posts
		WHERE id = $1 AND author_id = $2
	`
	row := r.pool.QueryRow(ctx, query, postID, authorID)

	var post models.Post
	if err := row.Scan(
		&post.ID,
		&post.Description,
		&post.NSFW,
		&post.SourceLink,
		&post.ImageURLs,
		&post.ImageWidths,
		&post.ImageHeights,
		&post.Fingerprints,
		&post.AuthorID,
		&post.ModerationStatus,
		&post.CreatedAt,
		&post.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, ErrPostNotFound
		}
		return models.Post{}, err
	}

	tags, err := r.labelNames(ctx, `SELECT tag_name FROM post_tags WHERE post_id = $1`, postID)
	if err != nil {
		return models.Post{}, err
	}
	post.Tags = tags

	artists, err := r.labelNames(ctx, `SELECT artist_name FROM post_artists WHERE post_id = $1`, postID)
	if err != nil {
		return models.Post{}, err
	}
	post.Artists = artists

	return post, nil
}

func (r *PostRepository) labelNames(ctx context.Context, query, postID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// FindDuplicates returns existing non-deleted posts whose fingerprint set
// intersects the given one, newest first, capped at limit.
func (r *PostRepository) FindDuplicates(ctx context.Context, fingerprints []string, limit int) ([]models.DuplicatePost, error) {
	const query = `
		SELECT id, description, image_urls
		FROM posts
		WHERE fingerprints && $1 AND moderation_status != $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, fingerprints, models.ModerationDeleted, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []models.DuplicatePost
	for rows.Next() {
		var match models.DuplicatePost
		if err := rows.Scan(&match.ID, &match.Description, &match.ImageURLs); err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

// CreatedSince lists indexing jobs for posts created after the given time.
// The reindex sweep re-enqueues these; at-least-once delivery downstream
// makes the repetition harmless.
func (r *PostRepository) CreatedSince(ctx context.Context, since time.Time) ([]models.IndexingJob, error) {
	const query = `
		SELECT id, image_urls
		FROM posts
		WHERE created_at >= $1 AND moderation_status != $2
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, since, models.ModerationDeleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.IndexingJob
	for rows.Next() {
		var job models.IndexingJob
		if err := rows.Scan(&job.PostID, &job.ImageURLs); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
