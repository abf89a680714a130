// Package catalog implements the read-only product catalog port the
// inventory engine validates its targets against. The catalog itself is an
// external collaborator; only existence and active flags are consulted here.
package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads product facts from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ProductExists reports whether the catalog knows the product.
func (r *Repository) ProductExists(ctx context.Context, productID uuid.UUID) (bool, error) {
	if r == nil {
		return false, errors.New("catalog repository not initialised")
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id=$1)`, productID).Scan(&exists)
	return exists, err
}

// IsActive reports whether the product accepts new reservations.
func (r *Repository) IsActive(ctx context.Context, productID uuid.UUID) (bool, error) {
	if r == nil {
		return false, errors.New("catalog repository not initialised")
	}
	var active bool
	err := r.pool.QueryRow(ctx, `SELECT is_active FROM products WHERE id=$1`, productID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return active, err
}
