package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/ans-sync/internal/ans"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestPostgresOperators_ClearAll(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresOperators(mock, Options{})

	mock.ExpectBegin()
	mock.ExpectExec(`SET CONSTRAINTS ALL DEFERRED`).WillReturnResult(pgxmock.NewResult("SET", 0))
	mock.ExpectExec(`TRUNCATE TABLE "ans"."operators" CASCADE`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCommit()

	require.NoError(t, s.ClearAll(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAccounting_ClearAll_Error(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresAccounting(mock, Options{Schema: "regdata"})

	mock.ExpectBegin()
	mock.ExpectExec(`SET CONSTRAINTS ALL DEFERRED`).WillReturnResult(pgxmock.NewResult("SET", 0))
	mock.ExpectExec(`TRUNCATE TABLE "regdata"."accounting" RESTART IDENTITY`).WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	err := s.ClearAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncate regdata.accounting")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresOperators_Load(t *testing.T) {
	mock := newMockPool(t)
	core, logs := observer.New(zap.DebugLevel)
	s := NewPostgresOperators(mock, Options{Logger: zap.New(core)})

	path := writeCSV(t, t.TempDir(), "operators.csv", operatorHeader,
		operatorLine("123456", "Alpha", "Recife", "81", "30001000", "2001-01-01"),
		operatorLine("123456", "Alpha again", "Recife", "81", "30001000", ""),
		operatorLine("654321", "Beta", "Natal", "84", "", ""),
	)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "stage_operators" \(LIKE "ans"."operators" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"stage_operators"}, ans.OperatorColumns).WillReturnResult(3)
	mock.ExpectExec(`INSERT INTO "ans"."operators" .* FROM "stage_operators" s WHERE true ON CONFLICT \(registro_ans\) DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rep, err := s.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rep.Inserted)
	require.NotEmpty(t, rep.Warnings)
	assert.Contains(t, rep.Warnings[len(rep.Warnings)-1], "1 rows with an already loaded registry code were ignored")
	assert.Equal(t, 1, logs.FilterMessage("load complete").Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresOperators_LoadFromCSV_StoreError(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresOperators(mock, Options{})
	path := writeCSV(t, t.TempDir(), "operators.csv", operatorHeader, operatorLine("1", "A", "B", "", "", ""))

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"stage_operators"}, ans.OperatorColumns).WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	n, err := s.LoadFromCSV(context.Background(), path)
	require.Error(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresOperators_LoadFromCSV_MissingFile(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresOperators(mock, Options{})

	_, err := s.LoadFromCSV(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAccounting_Load_ReportsOrphans(t *testing.T) {
	mock := newMockPool(t)
	core, logs := observer.New(zap.DebugLevel)
	s := NewPostgresAccounting(mock, Options{Logger: zap.New(core)})

	path := writeCSV(t, t.TempDir(), "1T2023.csv", statementHeader,
		"2023-01-01;999999;31;RECEITAS;1.000,50;-500,00",
	)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "stage_accounting" \(LIKE "ans"."accounting"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"stage_accounting"}, ans.StatementColumns).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "ans"."accounting" .* WHERE EXISTS \(SELECT 1 FROM "ans"."operators" o WHERE o.registro_ans = s.registro_ans\)`).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`SELECT DISTINCT registro_ans FROM "stage_accounting" s WHERE NOT EXISTS .* LIMIT 10`).
		WillReturnRows(pgxmock.NewRows([]string{"registro_ans"}).AddRow(int64(999999)))
	mock.ExpectCommit()

	n, err := s.LoadFromCSV(context.Background(), path, time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, 1, logs.FilterMessage("load inserted no rows").Len())
	warnings := logs.FilterMessage("load warning").All()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].ContextMap()["warning"], "[999999]")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresOperators_Search(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresOperators(mock, Options{})

	name := "Unimed Recife"
	reg := time.Date(1999, 5, 3, 0, 0, 0, 0, time.UTC)
	none := (*string)(nil)
	rows := pgxmock.NewRows(ans.OperatorColumns).AddRow(
		int64(123456), none, &name, none, none, none, none, none, none, none,
		none, none, none, none, none, none, none, none, none, &reg,
	)
	args := make([]any, 0, len(searchColumns)+1)
	for range searchColumns {
		args = append(args, "%unimed%")
	}
	args = append(args, DefaultSearchLimit)
	mock.ExpectQuery(`SELECT registro_ans, cnpj, .* FROM "ans"."operators" WHERE \(razao_social ILIKE \$1`).
		WithArgs(args...).
		WillReturnRows(rows)

	got, err := s.Search(context.Background(), Query{Text: "unimed"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(123456), got[0].RegistryCode)
	require.NotNil(t, got[0].LegalName)
	assert.Equal(t, name, *got[0].LegalName)
	assert.Nil(t, got[0].CNPJ)
	require.NotNil(t, got[0].RegisteredAt)
	assert.True(t, reg.Equal(*got[0].RegisteredAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresOperators_SearchEmptyQuery(t *testing.T) {
	mock := newMockPool(t)
	s := NewPostgresOperators(mock, Options{})

	got, err := s.Search(context.Background(), Query{Limit: 3})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Count(t *testing.T) {
	mock := newMockPool(t)
	ops := NewPostgresOperators(mock, Options{})
	acc := NewPostgresAccounting(mock, Options{})

	mock.ExpectQuery(`SELECT count\(\*\) FROM "ans"."operators"`).WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1234)))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "ans"."accounting"`).WillReturnError(errors.New("relation does not exist"))

	n, err := ops.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1234), n)

	_, err = acc.Count(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTables(t *testing.T) {
	assert.Equal(t, []string{"ans.operators", "ans.accounting"}, PostgresTables(""))
	assert.Equal(t, []string{"x.operators", "x.accounting"}, PostgresTables("x"))
	assert.Contains(t, PostgresSchema("x"), "REFERENCES x.operators (registro_ans) DEFERRABLE")
}
