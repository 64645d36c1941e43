package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFrom streams src into a table using the COPY protocol. table may be
// schema-qualified ("ans.operators").
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, src RowSource) (int64, error) {
	if len(columns) == 0 {
		return 0, eris.Errorf("db: COPY INTO %s: no columns specified", table)
	}

	n, err := pool.CopyFrom(ctx, identifier(table), columns, src)
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	if err := src.Err(); err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s: source", table)
	}
	return n, nil
}

// RowsSource adapts in-memory rows to a RowSource.
func RowsSource(rows [][]any) RowSource {
	return pgx.CopyFromRows(rows)
}
