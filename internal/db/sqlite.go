package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"

	_ "modernc.org/sqlite" // register sqlite driver
)

// OpenSQLite opens a SQLite database with foreign keys enforced on every pooled
// connection, caps the pool at poolSize and validates it like Connect: one connection
// is checked out and the required tables must exist.
func OpenSQLite(ctx context.Context, dsn string, poolSize int, tables []string) (*sql.DB, error) {
	if dsn == "" {
		return nil, eris.New("db: empty sqlite path")
	}
	if poolSize == 0 {
		poolSize = DefaultPoolSize
	}
	if poolSize < 0 {
		return nil, eris.Errorf("db: invalid pool size %d", poolSize)
	}

	sqlDB, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "db: sqlite open")
	}
	sqlDB.SetMaxOpenConns(poolSize)
	sqlDB.SetMaxIdleConns(poolSize)

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		_ = sqlDB.Close()
		return nil, eris.Wrap(err, "db: sqlite acquire validation connection")
	}
	for _, t := range tables {
		var n int
		err = conn.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", t).Scan(&n)
		if err == nil && n == 0 {
			err = eris.Errorf("db: required table %s does not exist", t)
		}
		if err != nil {
			break
		}
	}
	_ = conn.Close()
	if err != nil {
		_ = sqlDB.Close()
		return nil, eris.Wrap(err, "db: sqlite validate")
	}
	return sqlDB, nil
}

// withPragmas appends the per-connection pragmas understood by modernc.org/sqlite.
func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
