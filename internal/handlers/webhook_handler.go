package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/skyrent/backend/internal/config"
	"github.com/skyrent/backend/internal/services"
)

// Reconciler applies a normalized notification to its payment record.
// Satisfied by services.ReconciliationService.
type Reconciler interface {
	Process(n *services.Notification) (*services.ReconcileResult, error)
}

// WebhookHandler is the inbound boundary for processor notifications.
// Signature and payload errors are rejected here without touching storage.
type WebhookHandler struct {
	verifier   *services.SignatureVerifier
	reconciler Reconciler
	sigHeader  string
}

func NewWebhookHandler(verifier *services.SignatureVerifier, reconciler Reconciler, cfg config.ProcessorConfig) *WebhookHandler {
	return &WebhookHandler{
		verifier:   verifier,
		reconciler: reconciler,
		sigHeader:  cfg.SignatureHeader,
	}
}

// HandleNotification processes a payment processor callback
// @Summary Payment processor webhook
// @Description Accept a signed status notification from the payment processor
// @Tags webhooks
// @Accept json
// @Accept x-www-form-urlencoded
// @Produce json
// @Param notification body object{transaction_id=string,status=string,amount=string,source_amount=string,source_currency=string,signature=string} true "Processor notification"
// @Success 200 {object} object{status=string,transaction_id=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /webhooks/payments [post]
func (h *WebhookHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)

	fields, err := parseNotification(r)
	if err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	claimed := fields[services.SignatureField]
	if claimed == "" {
		claimed = r.Header.Get(h.sigHeader)
	}

	if err := h.verifier.Verify(fields, claimed); err != nil {
		log.Printf("[WEBHOOK] Rejected notification from %s: %v", r.RemoteAddr, err)
		services.SendErrorResponse(w, "Signature verification failed", http.StatusBadRequest, nil)
		return
	}

	notification, err := services.Normalize(fields)
	if err != nil {
		services.SendErrorResponse(w, "Malformed payload", http.StatusBadRequest, nil)
		return
	}

	result, err := h.reconciler.Process(notification)
	if err == services.ErrUnknownTransaction {
		log.Printf("[WEBHOOK] Unknown transaction %s", notification.TransactionID)
		services.SendErrorResponse(w, "Unknown transaction", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		// Surface persistence failures so the processor retries.
		log.Printf("[WEBHOOK] Failed to reconcile %s: %v", notification.TransactionID, err)
		services.SendErrorResponse(w, "Failed to process notification", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"transaction_id": notification.TransactionID,
		"duplicate":      result.Duplicate,
	})
}

// parseNotification flattens a JSON or form-encoded notification body into
// string fields. JSON numbers keep their wire text so the signature
// canonicalization matches what the processor signed.
func parseNotification(r *http.Request) (map[string]string, error) {
	fields := map[string]string{}

	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()

		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}

		for key, value := range raw {
			switch v := value.(type) {
			case string:
				fields[key] = v
			case json.Number:
				fields[key] = v.String()
			case bool:
				if v {
					fields[key] = "true"
				} else {
					fields[key] = "false"
				}
			case nil:
				// omitted
			default:
				data, err := json.Marshal(v)
				if err != nil {
					return nil, err
				}
				fields[key] = string(data)
			}
		}
		return fields, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	for key := range r.PostForm {
		fields[key] = r.PostForm.Get(key)
	}
	return fields, nil
}
