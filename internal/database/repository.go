package database

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health checks database connectivity
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// Querier abstracts over the pool and a transaction so session operations can
// run under a row lock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTx runs fn inside a transaction, committing on success.
func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// InTx is WithTx narrowed to the Querier surface, so callers that only need
// query methods stay mockable.
func (r *Repository) InTx(ctx context.Context, fn func(q Querier) error) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(tx)
	})
}

// parseWei converts a NUMERIC rendered as text into a big integer.
// Postgres never hands back a malformed numeric; a parse failure here means a
// schema bug, so it surfaces as zero plus an error.
func parseWei(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0), fmt.Errorf("invalid numeric value %q", s)
	}
	return n, nil
}

// weiArg renders a big integer for a ::numeric bind parameter.
func weiArg(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

// weiArgOpt is weiArg for nullable columns: nil binds NULL, not zero.
func weiArgOpt(n *big.Int) any {
	if n == nil {
		return nil
	}
	return n.String()
}
