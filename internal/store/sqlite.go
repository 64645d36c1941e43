package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/ans-sync/internal/ans"
	"github.com/sells-group/ans-sync/internal/db"
)

// SQLite keeps dates as ISO text and balances as fixed two-digit text so neither goes
// through REAL affinity or the driver's time parsing.
var sqliteCodec = codec{
	date:    func(t time.Time) any { return t.Format(time.DateOnly) },
	decimal: func(d decimal.Decimal) any { return d.StringFixed(2) },
}

// SQLiteOperators is the registry repository on SQLite.
type SQLiteOperators struct {
	db   *sql.DB
	opts Options
}

// NewSQLiteOperators creates a SQLiteOperators over sqlDB.
func NewSQLiteOperators(sqlDB *sql.DB, opts Options) *SQLiteOperators {
	return &SQLiteOperators{db: sqlDB, opts: opts.withDefaults("store.operators")}
}

// ClearAll empties the registry.
func (s *SQLiteOperators) ClearAll(ctx context.Context) error {
	return deleteAll(ctx, s.db, OperatorsTable)
}

// LoadFromCSV loads a registry CSV and returns the number of rows inserted.
func (s *SQLiteOperators) LoadFromCSV(ctx context.Context, path string) (int64, error) {
	rep, err := s.Load(ctx, path)
	return rep.Inserted, err
}

// Load is LoadFromCSV with the full report.
func (s *SQLiteOperators) Load(ctx context.Context, path string) (LoadReport, error) {
	src, err := openSource(path, s.opts.Encoding, sqliteCodec.decodeOperator)
	if err != nil {
		return LoadReport{File: path}, loadFailed(path, err)
	}
	defer src.Close() //nolint:errcheck

	res, err := db.StageInsertSQLite(ctx, s.db, operatorStage(OperatorsTable), src)
	if err != nil {
		return LoadReport{File: path}, loadFailed(path, err)
	}
	rep := src.report(path, res.Inserted, duplicateWarning(res)...)
	logReport(s.opts.Logger, OperatorsTable, rep)
	return rep, nil
}

// Search returns registry rows matching q.
func (s *SQLiteOperators) Search(ctx context.Context, q Query) ([]ans.Operator, error) {
	q = q.normalized()
	if q.Empty() {
		return []ans.Operator{}, nil
	}
	query, args := sqliteDialect.searchSQL(quoteTable(OperatorsTable), q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: search operators")
	}
	defer rows.Close() //nolint:errcheck

	out := []ans.Operator{}
	for rows.Next() {
		var reg sql.NullString
		op, err := scanOperator(rows, &reg)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan operator")
		}
		op.RegisteredAt = ans.ParseRegistrationDate(reg.String)
		out = append(out, op)
	}
	return out, eris.Wrap(rows.Err(), "store: search operators iterate")
}

// Count returns the number of registry rows.
func (s *SQLiteOperators) Count(ctx context.Context) (int64, error) {
	return countSQLite(ctx, s.db, OperatorsTable)
}

// SQLiteAccounting is the statements repository on SQLite.
type SQLiteAccounting struct {
	db   *sql.DB
	opts Options
}

// NewSQLiteAccounting creates a SQLiteAccounting over sqlDB.
func NewSQLiteAccounting(sqlDB *sql.DB, opts Options) *SQLiteAccounting {
	return &SQLiteAccounting{db: sqlDB, opts: opts.withDefaults("store.accounting")}
}

// ClearAll empties the statements table.
func (s *SQLiteAccounting) ClearAll(ctx context.Context) error {
	return deleteAll(ctx, s.db, AccountingTable)
}

// LoadFromCSV loads one statements CSV stamped with refDate and returns the number of
// rows inserted.
func (s *SQLiteAccounting) LoadFromCSV(ctx context.Context, path string, refDate time.Time) (int64, error) {
	rep, err := s.Load(ctx, path, refDate)
	return rep.Inserted, err
}

// Load is LoadFromCSV with the full report.
func (s *SQLiteAccounting) Load(ctx context.Context, path string, refDate time.Time) (LoadReport, error) {
	src, err := openSource(path, s.opts.Encoding, sqliteCodec.decodeStatement(refDate))
	if err != nil {
		return LoadReport{File: path}, loadFailed(path, err)
	}
	defer src.Close() //nolint:errcheck

	res, err := db.StageInsertSQLite(ctx, s.db, statementStage(AccountingTable, OperatorsTable), src)
	if err != nil {
		return LoadReport{File: path}, loadFailed(path, err)
	}
	rep := src.report(path, res.Inserted, orphanWarning(res)...)
	logReport(s.opts.Logger, AccountingTable, rep)
	return rep, nil
}

// Count returns the number of statement rows.
func (s *SQLiteAccounting) Count(ctx context.Context) (int64, error) {
	return countSQLite(ctx, s.db, AccountingTable)
}

func deleteAll(ctx context.Context, sqlDB *sql.DB, table string) error {
	err := db.WithForeignKeysOff(ctx, sqlDB, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, "DELETE FROM "+quoteTable(table))
		return err
	})
	return eris.Wrapf(err, "store: clear %s", table)
}

func countSQLite(ctx context.Context, sqlDB *sql.DB, table string) (int64, error) {
	var n int64
	err := sqlDB.QueryRowContext(ctx, "SELECT count(*) FROM "+quoteTable(table)).Scan(&n)
	return n, eris.Wrapf(err, "store: count %s", table)
}
