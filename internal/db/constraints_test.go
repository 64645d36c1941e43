package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithConstraintsSuspended_Commits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SET CONSTRAINTS ALL DEFERRED").WillReturnResult(pgxmock.NewResult("SET", 0))
	mock.ExpectExec("TRUNCATE TABLE").WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCommit()

	err = WithConstraintsSuspended(context.Background(), mock, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "TRUNCATE TABLE t")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithConstraintsSuspended_RollsBackOnFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SET CONSTRAINTS ALL DEFERRED").WillReturnResult(pgxmock.NewResult("SET", 0))
	mock.ExpectExec("TRUNCATE TABLE").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err = WithConstraintsSuspended(context.Background(), mock, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "TRUNCATE TABLE t")
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithConstraintsSuspended_SetFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SET CONSTRAINTS ALL DEFERRED").WillReturnError(errors.New("nope"))
	mock.ExpectRollback()

	called := false
	err = WithConstraintsSuspended(context.Background(), mock, func(pgx.Tx) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckTables(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT to_regclass").WithArgs("ans.operators").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT to_regclass").WithArgs("ans.accounting").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	err = CheckTables(context.Background(), mock, []string{"ans.operators", "ans.accounting"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ans.accounting does not exist")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_Validation(t *testing.T) {
	_, err := Connect(context.Background(), PoolConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty connection string")

	_, err = Connect(context.Background(), PoolConfig{DSN: "postgres://localhost/x", Size: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pool size")

	_, err = Connect(context.Background(), PoolConfig{DSN: "::not a dsn::", Size: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestManager_DelegatesUntilClosed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	closes := 0
	m := newManager(mock, func() { closes++ })
	require.Same(t, m, m.Pool())

	mock.ExpectExec("TRUNCATE TABLE x").WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	_, err = m.Pool().Exec(context.Background(), "TRUNCATE TABLE x")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	m.Close()
	m.Close()
	assert.Equal(t, 1, closes)

	ctx := context.Background()
	_, err = m.Exec(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrPoolUnavailable)
	_, err = m.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrPoolUnavailable)
	_, err = m.Begin(ctx)
	assert.ErrorIs(t, err, ErrPoolUnavailable)
	_, err = m.CopyFrom(ctx, pgx.Identifier{"x"}, []string{"a"}, pgx.CopyFromRows(nil))
	assert.ErrorIs(t, err, ErrPoolUnavailable)
	var n int
	assert.ErrorIs(t, m.QueryRow(ctx, "SELECT 1").Scan(&n), ErrPoolUnavailable)

	// The closed manager never reaches the pool.
	assert.NoError(t, mock.ExpectationsWereMet())
}
