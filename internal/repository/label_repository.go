package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"artbooru/api/internal/models"
)

// LabelRepository maintains tag and artist usage counters. Unseen labels
// are created with a zero counter before the increment, mirroring how
// labels are discovered from free text on upload.
type LabelRepository struct {
	pool *pgxpool.Pool
}

func NewLabelRepository(pool *pgxpool.Pool) *LabelRepository {
	return &LabelRepository{pool: pool}
}

func tableFor(kind models.LabelKind) (string, error) {
	switch kind {
	case models.LabelTag:
		return "tags", nil
	case models.LabelArtist:
		return "artists", nil
	default:
		return "", fmt.Errorf("unknown label kind %q", kind)
	}
}

// Increment bumps post_count for every named label, creating missing
// labels first. Create-if-missing and increment are deliberately separate
// statements to keep the contract store-agnostic.
func (r *LabelRepository) Increment(ctx context.Context, kind models.LabelKind, names []string) error {
	if len(names) == 0 {
		return nil
	}
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	ensure := fmt.Sprintf(`
		INSERT INTO %s (name, post_count, created_at, updated_at)
		SELECT unnest($1::text[]), 0, NOW(), NOW()
		ON CONFLICT (name) DO NOTHING
	`, table)
	if _, err := tx.Exec(ctx, ensure, names); err != nil {
		return fmt.Errorf("ensure %s: %w", table, err)
	}

	bump := fmt.Sprintf(`
		UPDATE %s
		SET post_count = post_count + 1, updated_at = NOW()
		WHERE name = ANY($1)
	`, table)
	if _, err := tx.Exec(ctx, bump, names); err != nil {
		return fmt.Errorf("increment %s: %w", table, err)
	}

	return tx.Commit(ctx)
}

// Decrement lowers post_count for every named label, never below zero.
// Callers only pass labels they previously incremented.
func (r *LabelRepository) Decrement(ctx context.Context, kind models.LabelKind, names []string) error {
	if len(names) == 0 {
		return nil
	}
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET post_count = GREATEST(post_count - 1, 0), updated_at = NOW()
		WHERE name = ANY($1)
	`, table)
	if _, err := r.pool.Exec(ctx, query, names); err != nil {
		return fmt.Errorf("decrement %s: %w", table, err)
	}
	return nil
}
