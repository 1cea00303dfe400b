package migrations

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyRunsEveryStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for range Statements {
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, Apply(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyStopsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS kones_balances").WillReturnError(errors.New("permission denied"))

	err = Apply(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migration 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRowIsUniquePerIdentity(t *testing.T) {
	assert.Contains(t, Statements[1], "user_auth_uid TEXT PRIMARY KEY")
}
