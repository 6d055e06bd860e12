package services

import (
	"database/sql"
	"log"
	"time"

	"github.com/skyrent/backend/internal/models"
)

// ReconcileResult describes what a notification did to its payment record.
type ReconcileResult struct {
	Record       *models.PaymentRecord
	Transitioned bool
	Credited     bool
	NewBalance   float64
	Duplicate    bool
}

// ReconciliationService applies normalized processor notifications to
// payment records exactly once. The row lock, transition check, record
// update and balance credit all run inside a single SQL transaction, so two
// concurrent deliveries of the same notification serialize on the payment
// row and the second one sees the completed state and no-ops.
type ReconciliationService struct {
	db       *sql.DB
	store    *PaymentStore
	ledger   *LedgerService
	notifier *Notifier
	audit    *AuditLogger
}

func NewReconciliationService(db *sql.DB, notifier *Notifier) *ReconciliationService {
	return &ReconciliationService{
		db:       db,
		store:    NewPaymentStore(db),
		ledger:   NewLedgerService(db),
		notifier: notifier,
		audit:    NewAuditLogger(),
	}
}

// canTransition reports whether to is a valid forward step from from.
// Terminal statuses have no outgoing edges.
func canTransition(from, to string) bool {
	switch from {
	case models.PaymentStatusPending:
		return to == models.PaymentStatusProcessing ||
			to == models.PaymentStatusCompleted ||
			to == models.PaymentStatusExpired ||
			to == models.PaymentStatusFailed
	case models.PaymentStatusProcessing:
		return to == models.PaymentStatusCompleted ||
			to == models.PaymentStatusFailed
	}
	return false
}

// Process applies a notification to its payment record. Duplicate and
// out-of-order notifications are acknowledged without touching state;
// unknown transaction ids surface ErrUnknownTransaction so the handler can
// answer 404 instead of creating records from webhooks.
func (s *ReconciliationService) Process(n *Notification) (*ReconcileResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	record, err := s.store.LockByTransactionID(tx, n.TransactionID)
	if err != nil {
		return nil, err
	}

	// Already reconciled to completion: the processor retried a delivery we
	// have fully applied. Acknowledge and stop before any write.
	if record.WebhookReceived && record.Status == models.PaymentStatusCompleted {
		s.audit.LogNoop(n.TransactionID, record.Status, n.Status)
		return &ReconcileResult{Record: record, Duplicate: true}, nil
	}

	if !canTransition(record.Status, n.Status) {
		log.Printf("[RECONCILE] Ignoring %s -> %s for %s", record.Status, n.Status, n.TransactionID)
		s.audit.LogNoop(n.TransactionID, record.Status, n.Status)
		return &ReconcileResult{Record: record}, nil
	}

	update := PaymentUpdate{Status: n.Status}
	if n.SettledAmount > 0 {
		update.CryptoAmount = &n.SettledAmount
		if n.SettledCurrency != "" {
			update.CryptoCurrency = &n.SettledCurrency
		}
		// Processors may settle in a different currency than requested, so
		// mismatched amounts are recorded, not rejected.
		if n.RequestedAmount > 0 {
			rate := n.RequestedAmount / n.SettledAmount
			update.ExchangeRate = &rate
		}
	}
	if models.Terminal(n.Status) {
		now := time.Now()
		update.ProcessedAt = &now
	}

	if err := s.store.ApplyUpdateTx(tx, n.TransactionID, update); err != nil {
		s.audit.LogError(n.TransactionID, record.UserID, err)
		return nil, err
	}

	result := &ReconcileResult{Record: record, Transitioned: true}
	record.Status = n.Status
	record.WebhookReceived = true
	record.ProcessedAt = update.ProcessedAt
	record.CryptoAmount = update.CryptoAmount
	record.CryptoCurrency = update.CryptoCurrency
	record.ExchangeRate = update.ExchangeRate

	if n.Status == models.PaymentStatusCompleted {
		balance, err := s.ledger.CreditTx(tx, record.UserID, record.TransactionID, record.Amount)
		if err == ErrAccountNotFound {
			// The money is owed; keep the completed status and flag the
			// orphaned record for manual follow-up.
			log.Printf("[RECONCILE] Account %s missing for completed payment %s, manual follow-up required",
				record.UserID, record.TransactionID)
			s.audit.LogError(record.TransactionID, record.UserID, err)
		} else if err != nil {
			s.audit.LogError(record.TransactionID, record.UserID, err)
			return nil, err
		} else {
			result.Credited = true
			result.NewBalance = balance
			s.audit.LogCredit(record.TransactionID, record.UserID, record.Amount, balance)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if result.Credited {
		s.notifier.NotifyCredit(record.TransactionID, record.UserID, record.Amount, result.NewBalance)
	}

	return result, nil
}
