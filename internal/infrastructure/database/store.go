package database

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"reconciler/internal/ports/output"
)

var _ output.Store = (*Store)(nil)

// Store implements output.Store on PostgreSQL using pgx.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
