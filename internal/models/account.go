package models

import "time"

// Account holds a user's spendable balance and lifetime earnings. Both
// fields are adjusted only through the ledger's conditional increment.
type Account struct {
	UserID        string    `json:"user_id" db:"user_id"`
	Balance       float64   `json:"balance" db:"balance"`
	TotalEarnings float64   `json:"total_earnings" db:"total_earnings"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// LedgerEntry is the audit row written for every applied credit.
type LedgerEntry struct {
	ID            int       `json:"id" db:"id"`
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	UserID        string    `json:"user_id" db:"user_id"`
	Amount        float64   `json:"amount" db:"amount"`
	BalanceAfter  float64   `json:"balance_after" db:"balance_after"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
