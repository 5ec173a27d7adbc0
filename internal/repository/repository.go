// Package repository provides database access layer.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// pgxPool is the subset of *pgxpool.Pool the repository uses.
// pgxmock.PgxPoolIface satisfies it in tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Repository provides database access methods.
type Repository struct {
	pool pgxPool
}

// New creates a new Repository with a connection pool.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.In("repository").With("operation", "parse database url").Wrap(err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, oops.In("repository").With("operation", "create pool").Wrap(err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.In("repository").With("operation", "ping database").Wrap(err)
	}

	return &Repository{pool: pool}, nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool pgxPool) *Repository {
	return &Repository{pool: pool}
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// withTx runs fn inside a transaction, committing on success.
func (r *Repository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.In("repository").With("operation", "begin transaction").Wrap(err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx) //nolint:errcheck // fn error takes precedence
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.In("repository").With("operation", "commit transaction").Wrap(err)
	}
	return nil
}

// uniqueViolation returns the violated constraint name when err is a
// PostgreSQL unique_violation.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
