package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestLedgerService_Credit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("successful credit", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("UPDATE accounts SET balance = balance \\+ \\$1, total_earnings = total_earnings \\+ \\$1").
			WithArgs(100.0, sqlmock.AnyArg(), "user1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(150.0))

		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs("T1", "user1", 100.0, 150.0, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		balance, err := service.Credit("user1", "T1", 100)
		assert.NoError(t, err)
		assert.Equal(t, 150.0, balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("account not found", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("UPDATE accounts SET balance = balance \\+ \\$1").
			WithArgs(100.0, sqlmock.AnyArg(), "ghost").
			WillReturnError(sql.ErrNoRows)

		mock.ExpectRollback()

		_, err := service.Credit("ghost", "T1", 100)
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_Balance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("existing account", func(t *testing.T) {
		mock.ExpectQuery("SELECT user_id, balance, total_earnings, updated_at FROM accounts").
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "balance", "total_earnings", "updated_at"}).
				AddRow("user1", 150.0, 500.0, time.Now()))

		account, err := service.Balance("user1")
		assert.NoError(t, err)
		assert.Equal(t, 150.0, account.Balance)
		assert.Equal(t, 500.0, account.TotalEarnings)
	})

	t.Run("missing account", func(t *testing.T) {
		mock.ExpectQuery("SELECT user_id, balance, total_earnings, updated_at FROM accounts").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		_, err := service.Balance("ghost")
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}
