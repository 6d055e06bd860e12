package services

import (
	"database/sql"
	"errors"
	"time"

	"github.com/skyrent/backend/internal/models"
)

var ErrAccountNotFound = errors.New("account not found")

// LedgerService applies deposit credits to user accounts. Balances are only
// ever adjusted through the conditional increment here, so concurrent
// credits to the same account from different payments stay correct without
// any application-side locking.
type LedgerService struct {
	db *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

// Credit applies a single credit in its own transaction and returns the new
// balance.
func (s *LedgerService) Credit(userID, transactionID string, amount float64) (float64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	balance, err := s.CreditTx(tx, userID, transactionID, amount)
	if err != nil {
		return 0, err
	}

	return balance, tx.Commit()
}

// CreditTx increments balance and total_earnings in one statement inside the
// caller's transaction, then records a ledger entry carrying the running
// balance.
func (s *LedgerService) CreditTx(tx *sql.Tx, userID, transactionID string, amount float64) (float64, error) {
	var balance float64
	err := tx.QueryRow(`
		UPDATE accounts
		SET balance = balance + $1, total_earnings = total_earnings + $1, updated_at = $2
		WHERE user_id = $3
		RETURNING balance`,
		amount, time.Now(), userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(`
		INSERT INTO ledger_entries (transaction_id, user_id, amount, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		transactionID, userID, amount, balance, time.Now()); err != nil {
		return 0, err
	}

	return balance, nil
}

// Balance returns the account's current balance and lifetime earnings.
func (s *LedgerService) Balance(userID string) (*models.Account, error) {
	var account models.Account
	err := s.db.QueryRow(`
		SELECT user_id, balance, total_earnings, updated_at
		FROM accounts
		WHERE user_id = $1`, userID).
		Scan(&account.UserID, &account.Balance, &account.TotalEarnings, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}
