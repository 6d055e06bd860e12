package models

import (
	"time"
)

// Canonical payment statuses. A record only ever moves forward; completed,
// expired and failed are terminal.
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusExpired    = "expired"
	PaymentStatusFailed     = "failed"
)

// PaymentRecord is the durable record of a deposit. Rows are permanent audit
// history and are never deleted; once terminal they are immutable apart from
// audit metadata.
type PaymentRecord struct {
	ID              int        `json:"id" db:"id"`
	TransactionID   string     `json:"transaction_id" db:"transaction_id"`
	UserID          string     `json:"user_id" db:"user_id"`
	Amount          float64    `json:"amount" db:"amount"`
	CryptoAmount    *float64   `json:"crypto_amount,omitempty" db:"crypto_amount"`
	CryptoCurrency  *string    `json:"crypto_currency,omitempty" db:"crypto_currency"`
	ExchangeRate    *float64   `json:"exchange_rate,omitempty" db:"exchange_rate"`
	Status          string     `json:"status" db:"status"`
	WebhookReceived bool       `json:"webhook_received" db:"webhook_received"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Terminal reports whether a status freezes the record.
func Terminal(status string) bool {
	switch status {
	case PaymentStatusCompleted, PaymentStatusExpired, PaymentStatusFailed:
		return true
	}
	return false
}
