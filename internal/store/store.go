// Package store holds the relational repositories for the operator registry and the
// accounting statements, in a Postgres flavour over pgx and a SQLite flavour over
// database/sql.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ans-sync/internal/ans"
)

// ErrLoadFailed marks a bulk load that the store rejected. Match it with errors.Is.
var ErrLoadFailed = eris.New("store: load failed")

// Table names, unqualified.
const (
	OperatorsTable  = "operators"
	AccountingTable = "accounting"

	// DefaultSchema is the Postgres schema holding both tables.
	DefaultSchema = "ans"
)

// Search limits.
const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 500
)

// OperatorStore is the registry repository used by the load phase and the search API.
type OperatorStore interface {
	ClearAll(ctx context.Context) error
	LoadFromCSV(ctx context.Context, path string) (int64, error)
	Search(ctx context.Context, q Query) ([]ans.Operator, error)
	Count(ctx context.Context) (int64, error)
}

// AccountingStore is the statements repository used by the load phase.
type AccountingStore interface {
	ClearAll(ctx context.Context) error
	LoadFromCSV(ctx context.Context, path string, refDate time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// Options configures a repository.
type Options struct {
	Schema   string // Postgres schema, default "ans"; ignored by SQLite
	Encoding string // character set of the CSV files, WHATWG label
	Logger   *zap.Logger
}

func (o Options) withDefaults(component string) Options {
	if o.Schema == "" {
		o.Schema = DefaultSchema
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	o.Logger = o.Logger.With(zap.String("component", component))
	return o
}

func (o Options) qualified(table string) string {
	return o.Schema + "." + table
}

// PostgresTables returns the schema-qualified tables a Postgres store needs.
func PostgresTables(schema string) []string {
	if schema == "" {
		schema = DefaultSchema
	}
	return []string{schema + "." + OperatorsTable, schema + "." + AccountingTable}
}

// SQLiteTables lists the tables a SQLite store needs.
var SQLiteTables = []string{OperatorsTable, AccountingTable}

// LoadReport describes one CSV load.
type LoadReport struct {
	File     string
	Read     int64 // records read from the file, header excluded
	Inserted int64 // rows written to the table
	Rejected int64 // records not written, for any reason
	Warnings []string
}

// loadFailed wraps ErrLoadFailed with the path and the underlying cause's message.
func loadFailed(path string, err error) error {
	return eris.Wrapf(ErrLoadFailed, "store: load %s: %v", path, err)
}

// logReport logs the outcome of a load. A load that inserted nothing logs every
// collected warning, since a format mismatch usually shows up that way rather than as
// an error.
func logReport(log *zap.Logger, table string, rep LoadReport) {
	log = log.With(zap.String("table", table), zap.String("file", rep.File))
	if rep.Inserted == 0 {
		log.Warn("load inserted no rows", zap.Int64("read", rep.Read), zap.Int64("rejected", rep.Rejected))
		for _, w := range rep.Warnings {
			log.Warn("load warning", zap.String("warning", w))
		}
		return
	}
	fields := []zap.Field{
		zap.Int64("read", rep.Read),
		zap.Int64("rows", rep.Inserted),
		zap.Int64("rejected", rep.Rejected),
	}
	if len(rep.Warnings) > 0 {
		fields = append(fields, zap.Int("warnings", len(rep.Warnings)), zap.String("first_warning", rep.Warnings[0]))
	}
	log.Info("load complete", fields...)
}

// Query filters a registry search. Text matches the registry code exactly or any of
// the descriptive columns as a case-insensitive substring; AreaCode and Phone match
// exactly. An all-empty query matches nothing.
type Query struct {
	Text     string
	AreaCode string
	Phone    string
	Limit    int
}

func (q Query) normalized() Query {
	q.Text = strings.TrimSpace(q.Text)
	q.AreaCode = strings.TrimSpace(q.AreaCode)
	q.Phone = strings.TrimSpace(q.Phone)
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultSearchLimit
	case q.Limit > MaxSearchLimit:
		q.Limit = MaxSearchLimit
	}
	return q
}

// Empty reports whether q has no filters.
func (q Query) Empty() bool {
	n := q.normalized()
	return n.Text == "" && n.AreaCode == "" && n.Phone == ""
}
