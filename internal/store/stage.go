package store

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/sells-group/ans-sync/internal/ans"
	"github.com/sells-group/ans-sync/internal/db"
)

const rejectedSample = 10

// quoteTable quotes a possibly schema-qualified table name.
func quoteTable(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

// operatorStage moves staged registry rows into table. A registry code seen before,
// in the table or earlier in the same file, is ignored.
func operatorStage(table string) db.StageConfig {
	return db.StageConfig{
		Table:   table,
		Stage:   "stage_operators",
		Columns: ans.OperatorColumns,
		Filter:  "WHERE true ON CONFLICT (registro_ans) DO NOTHING",
	}
}

// statementStage moves staged statement rows into table, keeping only rows whose
// registry code exists in operators. The codes left behind are sampled for the report.
func statementStage(table, operators string) db.StageConfig {
	exists := fmt.Sprintf("EXISTS (SELECT 1 FROM %s o WHERE o.registro_ans = s.registro_ans)", quoteTable(operators))
	return db.StageConfig{
		Table:    table,
		Stage:    "stage_accounting",
		Columns:  ans.StatementColumns,
		Filter:   "WHERE " + exists,
		Rejected: fmt.Sprintf("SELECT DISTINCT registro_ans FROM {stage} s WHERE NOT %s ORDER BY 1 LIMIT %d", exists, rejectedSample),
	}
}

func duplicateWarning(res db.StageResult) []string {
	if dup := res.Staged - res.Inserted; dup > 0 {
		return []string{fmt.Sprintf("%d rows with an already loaded registry code were ignored", dup)}
	}
	return nil
}

func orphanWarning(res db.StageResult) []string {
	orphans := res.Staged - res.Inserted
	if orphans <= 0 {
		return nil
	}
	return []string{fmt.Sprintf("%d rows reference registry codes missing from the registry, e.g. %v", orphans, res.RejectedKeys)}
}
