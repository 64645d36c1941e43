package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/ans-sync/internal/ans"
	"github.com/sells-group/ans-sync/internal/db"
)

var pgCodec = codec{
	date: func(t time.Time) any { return t },
	decimal: func(d decimal.Decimal) any {
		return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
	},
}

// PostgresOperators is the registry repository on Postgres.
type PostgresOperators struct {
	pool  db.Pool
	opts  Options
	table string
}

// NewPostgresOperators creates a PostgresOperators over pool.
func NewPostgresOperators(pool db.Pool, opts Options) *PostgresOperators {
	opts = opts.withDefaults("store.operators")
	return &PostgresOperators{pool: pool, opts: opts, table: opts.qualified(OperatorsTable)}
}

// ClearAll empties the registry. Statements referencing it are truncated with it.
func (s *PostgresOperators) ClearAll(ctx context.Context) error {
	return truncate(ctx, s.pool, s.table, "CASCADE")
}

// LoadFromCSV loads a registry CSV and returns the number of rows inserted.
func (s *PostgresOperators) LoadFromCSV(ctx context.Context, path string) (int64, error) {
	rep, err := s.Load(ctx, path)
	return rep.Inserted, err
}

// Load is LoadFromCSV with the full report.
func (s *PostgresOperators) Load(ctx context.Context, path string) (LoadReport, error) {
	src, err := openSource(path, s.opts.Encoding, pgCodec.decodeOperator)
	if err != nil {
		return LoadReport{File: path}, loadFailed(path, err)
	}
	defer src.Close() //nolint:errcheck

	res, err := db.StageInsert(ctx, s.pool, operatorStage(s.table), src)
	if err != nil {
		return LoadReport{File: path}, loadFailed(path, err)
	}
	rep := src.report(path, res.Inserted, duplicateWarning(res)...)
	logReport(s.opts.Logger, s.table, rep)
	return rep, nil
}

// Search returns registry rows matching q.
func (s *PostgresOperators) Search(ctx context.Context, q Query) ([]ans.Operator, error) {
	q = q.normalized()
	if q.Empty() {
		return []ans.Operator{}, nil
	}
	query, args := postgresDialect.searchSQL(quoteTable(s.table), q)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: search operators")
	}
	defer rows.Close()

	out := []ans.Operator{}
	for rows.Next() {
		var reg *time.Time
		op, err := scanOperator(rows, &reg)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan operator")
		}
		op.RegisteredAt = reg
		out = append(out, op)
	}
	return out, eris.Wrap(rows.Err(), "store: search operators iterate")
}

// Count returns the number of registry rows.
func (s *PostgresOperators) Count(ctx context.Context) (int64, error) {
	return count(ctx, s.pool, s.table)
}

// PostgresAccounting is the statements repository on Postgres.
type PostgresAccounting struct {
	pool      db.Pool
	opts      Options
	table     string
	operators string
}

// NewPostgresAccounting creates a PostgresAccounting over pool.
func NewPostgresAccounting(pool db.Pool, opts Options) *PostgresAccounting {
	opts = opts.withDefaults("store.accounting")
	return &PostgresAccounting{
		pool:      pool,
		opts:      opts,
		table:     opts.qualified(AccountingTable),
		operators: opts.qualified(OperatorsTable),
	}
}

// ClearAll empties the statements table and resets its id sequence.
func (s *PostgresAccounting) ClearAll(ctx context.Context) error {
	return truncate(ctx, s.pool, s.table, "RESTART IDENTITY")
}

// LoadFromCSV loads one statements CSV, stamping every row with refDate, and returns
// the number of rows inserted.
func (s *PostgresAccounting) LoadFromCSV(ctx context.Context, path string, refDate time.Time) (int64, error) {
	rep, err := s.Load(ctx, path, refDate)
	return rep.Inserted, err
}

// Load is LoadFromCSV with the full report.
func (s *PostgresAccounting) Load(ctx context.Context, path string, refDate time.Time) (LoadReport, error) {
	src, err := openSource(path, s.opts.Encoding, pgCodec.decodeStatement(refDate))
	if err != nil {
		return LoadReport{File: path}, loadFailed(path, err)
	}
	defer src.Close() //nolint:errcheck

	res, err := db.StageInsert(ctx, s.pool, statementStage(s.table, s.operators), src)
	if err != nil {
		return LoadReport{File: path}, loadFailed(path, err)
	}
	rep := src.report(path, res.Inserted, orphanWarning(res)...)
	logReport(s.opts.Logger, s.table, rep)
	return rep, nil
}

// Count returns the number of statement rows.
func (s *PostgresAccounting) Count(ctx context.Context) (int64, error) {
	return count(ctx, s.pool, s.table)
}

func truncate(ctx context.Context, pool db.Pool, table, mode string) error {
	err := db.WithConstraintsSuspended(ctx, pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s %s", quoteTable(table), mode))
		return err
	})
	return eris.Wrapf(err, "store: truncate %s", table)
}

func count(ctx context.Context, pool db.Pool, table string) (int64, error) {
	var n int64
	err := pool.QueryRow(ctx, "SELECT count(*) FROM "+quoteTable(table)).Scan(&n)
	return n, eris.Wrapf(err, "store: count %s", table)
}
