package services

import (
	"encoding/json"
	"log"
	"time"
)

// AuditEvent is a structured record of a reconciliation outcome. Events are
// emitted as JSON lines so they can be shipped to the audit store verbatim.
type AuditEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id,omitempty"`
	Amount        float64   `json:"amount,omitempty"`
	Status        string    `json:"status"`
	Details       any       `json:"details,omitempty"`
}

type AuditLogger struct{}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

func (a *AuditLogger) LogCredit(transactionID, userID string, amount, balance float64) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "CREDIT",
		TransactionID: transactionID,
		UserID:        userID,
		Amount:        amount,
		Status:        "SUCCESS",
		Details:       map[string]float64{"balance_after": balance},
	})
}

// LogNoop records a notification that was acknowledged without mutating
// state (duplicate delivery or out-of-order status).
func (a *AuditLogger) LogNoop(transactionID, currentStatus, reportedStatus string) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "NOOP",
		TransactionID: transactionID,
		Status:        currentStatus,
		Details:       map[string]string{"reported_status": reportedStatus},
	})
}

func (a *AuditLogger) LogError(transactionID, userID string, err error) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		UserID:        userID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[AUDIT] Failed to marshal event: %v", err)
		return
	}
	log.Printf("[AUDIT] %s", data)
}
