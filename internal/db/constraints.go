package db

import (
	"context"
	"database/sql"
	"database/sql/driver"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// WithConstraintsSuspended runs fn in a transaction with deferrable constraints
// deferred. The setting is transaction-scoped, so it ends with the transaction whether
// fn succeeds or not and never leaks onto a pooled connection.
func WithConstraintsSuspended(ctx context.Context, pool Pool, fn func(tx pgx.Tx) error) (err error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "db: begin tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SET CONSTRAINTS ALL DEFERRED"); err != nil {
		return eris.Wrap(err, "db: defer constraints")
	}
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "db: commit tx")
	}
	return nil
}

// WithForeignKeysOff runs fn on a pinned SQLite connection with foreign-key
// enforcement disabled, and always turns enforcement back on before the connection
// returns to the pool. If it cannot be restored the connection is discarded.
func WithForeignKeysOff(ctx context.Context, sqlDB *sql.DB, fn func(conn *sql.Conn) error) (err error) {
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return eris.Wrap(err, "db: pin connection")
	}
	defer func() {
		if _, rerr := conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA foreign_keys = ON"); rerr != nil {
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			if err == nil {
				err = eris.Wrap(rerr, "db: restore foreign keys")
			}
		}
		_ = conn.Close()
	}()

	if _, err = conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return eris.Wrap(err, "db: disable foreign keys")
	}
	return fn(conn)
}
