package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// StageConfig describes a staged bulk insert: rows are bulk-copied into a temporary
// table shaped like Table, then moved into Table with one set-based statement.
type StageConfig struct {
	Table   string   // target table, optionally schema-qualified
	Stage   string   // name of the temporary staging table
	Columns []string // columns written, in RowSource order

	// Filter is appended to "INSERT INTO t (cols) SELECT cols FROM stage s". It may
	// reference the staging table as s, e.g. a WHERE EXISTS or an ON CONFLICT clause.
	Filter string

	// Rejected, when set, is a query returning the single int64 key of staged rows the
	// insert left behind. "{stage}" is replaced with the staging table name. It runs
	// only when fewer rows were inserted than staged.
	Rejected string
}

// StageResult reports the outcome of a staged insert.
type StageResult struct {
	Staged       int64
	Inserted     int64
	RejectedKeys []int64
}

func (c StageConfig) validate() error {
	if c.Table == "" || c.Stage == "" {
		return eris.New("db: stage: table and stage names are required")
	}
	if len(c.Columns) == 0 {
		return eris.New("db: stage: no columns specified")
	}
	return nil
}

func (c StageConfig) insertSQL() string {
	cols := quoteAndJoin(c.Columns)
	q := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s s",
		identifier(c.Table).Sanitize(), cols, cols, pgx.Identifier{c.Stage}.Sanitize())
	if c.Filter != "" {
		q += " " + c.Filter
	}
	return q
}

func (c StageConfig) rejectedSQL() string {
	return strings.ReplaceAll(c.Rejected, "{stage}", pgx.Identifier{c.Stage}.Sanitize())
}

// StageInsert runs a staged insert against Postgres in a single transaction. The
// staging table is dropped on commit; on any error the transaction rolls back and the
// target is left untouched.
func StageInsert(ctx context.Context, pool Pool, cfg StageConfig, src RowSource) (res StageResult, err error) {
	if err := cfg.validate(); err != nil {
		return res, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return res, eris.Wrap(err, "db: stage: begin tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	createSQL := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{cfg.Stage}.Sanitize(), identifier(cfg.Table).Sanitize())
	if _, err = tx.Exec(ctx, createSQL); err != nil {
		return res, eris.Wrapf(err, "db: stage: create staging table for %s", cfg.Table)
	}

	if res.Staged, err = CopyFrom(ctx, tx, cfg.Stage, cfg.Columns, src); err != nil {
		return res, err
	}

	tag, err := tx.Exec(ctx, cfg.insertSQL())
	if err != nil {
		return res, eris.Wrapf(err, "db: stage: insert into %s", cfg.Table)
	}
	res.Inserted = tag.RowsAffected()

	if cfg.Rejected != "" && res.Inserted < res.Staged {
		if res.RejectedKeys, err = collectKeys(ctx, tx, cfg.rejectedSQL()); err != nil {
			return res, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return res, eris.Wrap(err, "db: stage: commit tx")
	}
	return res, nil
}

func collectKeys(ctx context.Context, tx pgx.Tx, query string) ([]int64, error) {
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "db: stage: query rejected keys")
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, eris.Wrap(err, "db: stage: scan rejected keys")
	}
	return keys, nil
}

// StageInsertSQLite is StageInsert for SQLite. Rows are inserted into a temporary table
// with a prepared statement inside one transaction, then moved set-based.
func StageInsertSQLite(ctx context.Context, sqlDB *sql.DB, cfg StageConfig, src RowSource) (res StageResult, err error) {
	if err := cfg.validate(); err != nil {
		return res, err
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return res, eris.Wrap(err, "db: stage: begin tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stage := pgx.Identifier{cfg.Stage}.Sanitize()
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS temp.%s", stage)); err != nil {
		return res, eris.Wrap(err, "db: stage: drop stale staging table")
	}
	createSQL := fmt.Sprintf("CREATE TEMP TABLE %s AS SELECT * FROM %s WHERE 0", stage, identifier(cfg.Table).Sanitize())
	if _, err = tx.ExecContext(ctx, createSQL); err != nil {
		return res, eris.Wrapf(err, "db: stage: create staging table for %s", cfg.Table)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cfg.Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO temp.%s (%s) VALUES (%s)", stage, quoteAndJoin(cfg.Columns), placeholders))
	if err != nil {
		return res, eris.Wrap(err, "db: stage: prepare staging insert")
	}
	defer stmt.Close() //nolint:errcheck

	for src.Next() {
		vals, verr := src.Values()
		if verr != nil {
			err = eris.Wrap(verr, "db: stage: row values")
			return res, err
		}
		if _, err = stmt.ExecContext(ctx, vals...); err != nil {
			return res, eris.Wrapf(err, "db: stage: insert staging row %d", res.Staged+1)
		}
		res.Staged++
	}
	if err = src.Err(); err != nil {
		return res, eris.Wrap(err, "db: stage: source")
	}

	r, err := tx.ExecContext(ctx, cfg.insertSQL())
	if err != nil {
		return res, eris.Wrapf(err, "db: stage: insert into %s", cfg.Table)
	}
	if res.Inserted, err = r.RowsAffected(); err != nil {
		return res, eris.Wrap(err, "db: stage: rows affected")
	}

	if cfg.Rejected != "" && res.Inserted < res.Staged {
		rows, qerr := tx.QueryContext(ctx, cfg.rejectedSQL())
		if qerr != nil {
			err = eris.Wrap(qerr, "db: stage: query rejected keys")
			return res, err
		}
		for rows.Next() {
			var k int64
			if err = rows.Scan(&k); err != nil {
				_ = rows.Close()
				return res, eris.Wrap(err, "db: stage: scan rejected keys")
			}
			res.RejectedKeys = append(res.RejectedKeys, k)
		}
		if err = rows.Err(); err != nil {
			return res, eris.Wrap(err, "db: stage: rejected keys")
		}
		_ = rows.Close()
	}

	if _, err = tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE temp.%s", stage)); err != nil {
		return res, eris.Wrap(err, "db: stage: drop staging table")
	}
	if err = tx.Commit(); err != nil {
		return res, eris.Wrap(err, "db: stage: commit tx")
	}
	return res, nil
}

// identifier splits a schema-qualified table name like "ans.operators".
func identifier(table string) pgx.Identifier {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}
	}
	return pgx.Identifier{table}
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
