package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/skyrent/backend/internal/config"
)

// CreditNotification is the event queued for the email worker after a
// deposit is credited.
type CreditNotification struct {
	Event         string  `json:"event"`
	TransactionID string  `json:"transaction_id"`
	UserID        string  `json:"user_id"`
	Amount        float64 `json:"amount"`
	Balance       float64 `json:"balance"`
}

// Notifier pushes credited-deposit events onto a Redis list for the external
// email worker. Delivery is best effort: a queue failure never fails the
// webhook acknowledgment.
type Notifier struct {
	redis *redis.Client
	queue string
}

func NewNotifier(redisClient *redis.Client, cfg config.NotifierConfig) *Notifier {
	queue := cfg.Queue
	if queue == "" {
		queue = "deposit_notifications"
	}
	return &Notifier{redis: redisClient, queue: queue}
}

func (n *Notifier) NotifyCredit(transactionID, userID string, amount, balance float64) {
	if n == nil || n.redis == nil {
		log.Printf("[NOTIFY] Deposit %s credited for user %s", transactionID, userID)
		return
	}

	payload, err := json.Marshal(CreditNotification{
		Event:         "deposit_credited",
		TransactionID: transactionID,
		UserID:        userID,
		Amount:        amount,
		Balance:       balance,
	})
	if err != nil {
		log.Printf("[NOTIFY] Failed to marshal notification for %s: %v", transactionID, err)
		return
	}

	if err := n.redis.RPush(context.Background(), n.queue, payload).Err(); err != nil {
		log.Printf("[NOTIFY] Failed to queue notification for %s: %v", transactionID, err)
	}
}
