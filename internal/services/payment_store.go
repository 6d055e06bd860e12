package services

import (
	"database/sql"
	"errors"
	"time"

	"github.com/skyrent/backend/internal/models"
)

var ErrUnknownTransaction = errors.New("unknown transaction")

// PaymentStore is the durable mapping from external transaction ids to
// payment records. Records are created when a deposit is issued; webhooks
// never create rows here, which keeps forged transaction ids out.
type PaymentStore struct {
	db *sql.DB
}

func NewPaymentStore(db *sql.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

const paymentColumns = `id, transaction_id, user_id, amount, crypto_amount, crypto_currency, exchange_rate, status, webhook_received, processed_at, created_at, updated_at`

// Create inserts a fresh pending record for an issued deposit.
func (s *PaymentStore) Create(record *models.PaymentRecord) error {
	record.Status = models.PaymentStatusPending
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt

	return s.db.QueryRow(`
		INSERT INTO payments (transaction_id, user_id, amount, status, webhook_received, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6)
		RETURNING id`,
		record.TransactionID, record.UserID, record.Amount, record.Status,
		record.CreatedAt, record.UpdatedAt).Scan(&record.ID)
}

func (s *PaymentStore) FindByTransactionID(txID string) (*models.PaymentRecord, error) {
	row := s.db.QueryRow(`SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1`, txID)
	return scanPayment(row)
}

// LockByTransactionID loads a payment row under FOR UPDATE so the caller's
// transition check and update form one atomic unit. Concurrent deliveries of
// the same notification serialize on this lock.
func (s *PaymentStore) LockByTransactionID(tx *sql.Tx, txID string) (*models.PaymentRecord, error) {
	row := tx.QueryRow(`SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1 FOR UPDATE`, txID)
	return scanPayment(row)
}

func (s *PaymentStore) ListByUser(userID string, limit int) ([]models.PaymentRecord, error) {
	rows, err := s.db.Query(`
		SELECT `+paymentColumns+` FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.PaymentRecord{}
	for rows.Next() {
		record, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// PaymentUpdate carries the fields a reconciliation writes back onto the
// record.
type PaymentUpdate struct {
	Status         string
	CryptoAmount   *float64
	CryptoCurrency *string
	ExchangeRate   *float64
	ProcessedAt    *time.Time
}

// ApplyUpdateTx writes the reconciled fields and marks the webhook as
// received, as a single statement inside the caller's transaction.
func (s *PaymentStore) ApplyUpdateTx(tx *sql.Tx, txID string, update PaymentUpdate) error {
	result, err := tx.Exec(`
		UPDATE payments
		SET status = $1,
		    webhook_received = TRUE,
		    crypto_amount = COALESCE($2, crypto_amount),
		    crypto_currency = COALESCE($3, crypto_currency),
		    exchange_rate = COALESCE($4, exchange_rate),
		    processed_at = COALESCE($5, processed_at),
		    updated_at = $6
		WHERE transaction_id = $7`,
		update.Status, update.CryptoAmount, update.CryptoCurrency,
		update.ExchangeRate, update.ProcessedAt, time.Now(), txID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUnknownTransaction
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := row.Scan(
		&record.ID, &record.TransactionID, &record.UserID, &record.Amount,
		&record.CryptoAmount, &record.CryptoCurrency, &record.ExchangeRate,
		&record.Status, &record.WebhookReceived, &record.ProcessedAt,
		&record.CreatedAt, &record.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUnknownTransaction
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
