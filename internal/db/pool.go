// Package db manages the Postgres and SQLite connection pools used by the loaders and
// provides the bulk-load primitives they share.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the subset of *pgxpool.Pool used by the repositories. pgx.Tx and
// pgxmock's pool both satisfy it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// RowSource streams rows into a bulk load. It has the same method set as
// pgx.CopyFromSource so one implementation feeds both COPY and SQLite inserts.
type RowSource interface {
	Next() bool
	Values() ([]any, error)
	Err() error
}
