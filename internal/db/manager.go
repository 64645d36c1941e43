package db

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// ErrPoolUnavailable is returned by every pool operation once the manager has been
// closed.
var ErrPoolUnavailable = eris.New("db: connection pool unavailable")

// DefaultPoolSize is the pool size used when none is configured.
const DefaultPoolSize = 2

// PoolConfig configures a Manager.
type PoolConfig struct {
	DSN    string
	Size   int
	Tables []string // schema-qualified tables that must exist, e.g. "ans.operators"
}

// Manager owns a bounded Postgres connection pool for one process run. Repositories
// reach the pool only through the Manager, so nothing checks out a connection after
// Close. It is safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	pool   Pool
	close  func()
	closed bool
}

var _ Pool = (*Manager)(nil)

// Connect builds the pool and validates it by acquiring one connection and checking the
// required tables. Any failure is reported here rather than at first use.
func Connect(ctx context.Context, cfg PoolConfig) (*Manager, error) {
	if cfg.DSN == "" {
		return nil, eris.New("db: empty connection string")
	}
	size := cfg.Size
	if size == 0 {
		size = DefaultPoolSize
	}
	if size < 0 {
		return nil, eris.Errorf("db: invalid pool size %d", cfg.Size)
	}

	pgxCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, eris.Wrap(err, "db: parse config")
	}
	pgxCfg.MaxConns = int32(size)
	pgxCfg.MinConns = 0
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "db: create pool")
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "db: acquire validation connection")
	}
	err = CheckTables(ctx, conn, cfg.Tables)
	conn.Release()
	if err != nil {
		pool.Close()
		return nil, err
	}

	return newManager(pool, pool.Close), nil
}

func newManager(pool Pool, closeFn func()) *Manager {
	return &Manager{pool: pool, close: closeFn}
}

// live returns the underlying pool, or ErrPoolUnavailable after Close. The read lock
// is held by the caller until the operation has been issued.
func (m *Manager) live() (Pool, error) {
	if m.closed {
		return nil, ErrPoolUnavailable
	}
	return m.pool, nil
}

// Exec runs sql on a pooled connection.
func (m *Manager) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, err := m.live()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return p.Exec(ctx, sql, args...)
}

// Query runs sql on a pooled connection.
func (m *Manager) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, err := m.live()
	if err != nil {
		return nil, err
	}
	return p.Query(ctx, sql, args...)
}

// QueryRow runs sql on a pooled connection. After Close the row's Scan fails with
// ErrPoolUnavailable.
func (m *Manager) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, err := m.live()
	if err != nil {
		return errRow{err: err}
	}
	return p.QueryRow(ctx, sql, args...)
}

// Begin starts a transaction on a connection held until commit or rollback.
func (m *Manager) Begin(ctx context.Context) (pgx.Tx, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, err := m.live()
	if err != nil {
		return nil, err
	}
	return p.Begin(ctx)
}

// CopyFrom bulk-copies rowSrc into tableName.
func (m *Manager) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, err := m.live()
	if err != nil {
		return 0, err
	}
	return p.CopyFrom(ctx, tableName, columnNames, rowSrc)
}

// Pool returns the manager itself as the repositories' Pool.
func (m *Manager) Pool() Pool {
	return m
}

// Close closes the pool. It is safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	if m.close != nil {
		m.close()
	}
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CheckTables fails when any of tables does not resolve to a relation.
func CheckTables(ctx context.Context, q rowQuerier, tables []string) error {
	for _, t := range tables {
		var exists bool
		if err := q.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", t).Scan(&exists); err != nil {
			return eris.Wrapf(err, "db: check table %s", t)
		}
		if !exists {
			return eris.Errorf("db: required table %s does not exist", t)
		}
	}
	return nil
}
