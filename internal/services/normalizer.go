package services

import (
	"errors"
	"strconv"
	"strings"

	"github.com/skyrent/backend/internal/models"
)

var ErrMalformedPayload = errors.New("notification missing transaction id")

// Notification is the canonical form of a processor callback, decoupled from
// the processor's field names and status vocabulary.
type Notification struct {
	TransactionID   string
	Status          string
	RequestedAmount float64
	SettledAmount   float64
	SettledCurrency string
}

// statusMap translates the processor's status vocabulary into canonical
// statuses. Lookup is case-insensitive.
var statusMap = map[string]string{
	"completed": models.PaymentStatusCompleted,
	"success":   models.PaymentStatusCompleted,
	"pending":   models.PaymentStatusPending,
	"new":       models.PaymentStatusPending,
	"expired":   models.PaymentStatusExpired,
	"error":     models.PaymentStatusFailed,
	"cancelled": models.PaymentStatusFailed,
}

// NormalizeStatus maps a processor status onto the canonical vocabulary.
// Unknown statuses default to pending so an unrecognized value can never
// trip a terminal transition.
func NormalizeStatus(external string) string {
	if canonical, ok := statusMap[strings.ToLower(strings.TrimSpace(external))]; ok {
		return canonical
	}
	return models.PaymentStatusPending
}

// Normalize maps raw notification fields into a Notification. The processor
// reports the external id as transaction_id (txn_id on older callback
// versions), the requested fiat amount as amount, and the settlement leg as
// source_amount/source_currency.
func Normalize(fields map[string]string) (*Notification, error) {
	txID := strings.TrimSpace(fields["transaction_id"])
	if txID == "" {
		txID = strings.TrimSpace(fields["txn_id"])
	}
	if txID == "" {
		return nil, ErrMalformedPayload
	}

	n := &Notification{
		TransactionID:   txID,
		Status:          NormalizeStatus(fields["status"]),
		SettledCurrency: strings.ToUpper(strings.TrimSpace(fields["source_currency"])),
	}

	if v, err := strconv.ParseFloat(fields["amount"], 64); err == nil {
		n.RequestedAmount = v
	}
	if v, err := strconv.ParseFloat(fields["source_amount"], 64); err == nil {
		n.SettledAmount = v
	}

	return n, nil
}
