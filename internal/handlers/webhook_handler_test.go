package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/skyrent/backend/internal/config"
	"github.com/skyrent/backend/internal/models"
	"github.com/skyrent/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var testProcessorConfig = config.ProcessorConfig{
	Secret:          "test-secret",
	SignatureHeader: "X-Processor-Signature",
}

func newWebhookTest() (*WebhookHandler, *MockReconciler, *services.SignatureVerifier) {
	verifier := services.NewSignatureVerifier(testProcessorConfig)
	reconciler := &MockReconciler{}
	handler := NewWebhookHandler(verifier, reconciler, testProcessorConfig)
	return handler, reconciler, verifier
}

func signedFormRequest(verifier *services.SignatureVerifier, fields map[string]string) *http.Request {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	form.Set(services.SignatureField, verifier.Sign(fields))

	r := httptest.NewRequest("POST", "/webhooks/payments", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestWebhookHandler_HandleNotification(t *testing.T) {
	scenarioFields := map[string]string{
		"transaction_id":  "T1",
		"status":          "success",
		"amount":          "100",
		"source_amount":   "0.002",
		"source_currency": "BTC",
	}

	t.Run("valid completed notification", func(t *testing.T) {
		handler, reconciler, verifier := newWebhookTest()

		reconciler.On("Process", mock.MatchedBy(func(n *services.Notification) bool {
			return n.TransactionID == "T1" &&
				n.Status == models.PaymentStatusCompleted &&
				n.RequestedAmount == 100 &&
				n.SettledAmount == 0.002 &&
				n.SettledCurrency == "BTC"
		})).Return(&services.ReconcileResult{Transitioned: true, Credited: true, NewBalance: 150}, nil)

		w := httptest.NewRecorder()
		handler.HandleNotification(w, signedFormRequest(verifier, scenarioFields))

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]any
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, "ok", response["status"])
		assert.Equal(t, "T1", response["transaction_id"])
		reconciler.AssertExpectations(t)
	})

	t.Run("duplicate delivery acknowledged", func(t *testing.T) {
		handler, reconciler, verifier := newWebhookTest()

		reconciler.On("Process", mock.Anything).
			Return(&services.ReconcileResult{Duplicate: true}, nil)

		w := httptest.NewRecorder()
		handler.HandleNotification(w, signedFormRequest(verifier, scenarioFields))

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]any
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, true, response["duplicate"])
	})

	t.Run("unsigned notification rejected", func(t *testing.T) {
		handler, reconciler, _ := newWebhookTest()

		form := url.Values{}
		for k, v := range scenarioFields {
			form.Set(k, v)
		}
		r := httptest.NewRequest("POST", "/webhooks/payments", strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		w := httptest.NewRecorder()
		handler.HandleNotification(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		reconciler.AssertNotCalled(t, "Process", mock.Anything)
	})

	t.Run("tampered signature rejected", func(t *testing.T) {
		handler, reconciler, verifier := newWebhookTest()

		form := url.Values{}
		for k, v := range scenarioFields {
			form.Set(k, v)
		}
		sig := []byte(verifier.Sign(scenarioFields))
		if sig[0] == 'a' {
			sig[0] = 'b'
		} else {
			sig[0] = 'a'
		}
		form.Set(services.SignatureField, string(sig))

		r := httptest.NewRequest("POST", "/webhooks/payments", strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		w := httptest.NewRecorder()
		handler.HandleNotification(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		reconciler.AssertNotCalled(t, "Process", mock.Anything)
	})

	t.Run("missing transaction id", func(t *testing.T) {
		handler, reconciler, verifier := newWebhookTest()

		fields := map[string]string{"status": "success", "amount": "100"}

		w := httptest.NewRecorder()
		handler.HandleNotification(w, signedFormRequest(verifier, fields))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		reconciler.AssertNotCalled(t, "Process", mock.Anything)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		handler, reconciler, verifier := newWebhookTest()

		reconciler.On("Process", mock.Anything).
			Return(nil, services.ErrUnknownTransaction)

		w := httptest.NewRecorder()
		handler.HandleNotification(w, signedFormRequest(verifier, scenarioFields))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("persistence failure surfaces as 500", func(t *testing.T) {
		handler, reconciler, verifier := newWebhookTest()

		reconciler.On("Process", mock.Anything).
			Return(nil, errors.New("connection reset"))

		w := httptest.NewRecorder()
		handler.HandleNotification(w, signedFormRequest(verifier, scenarioFields))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("json body with header signature", func(t *testing.T) {
		handler, reconciler, verifier := newWebhookTest()

		reconciler.On("Process", mock.MatchedBy(func(n *services.Notification) bool {
			return n.TransactionID == "T2" && n.Status == models.PaymentStatusExpired
		})).Return(&services.ReconcileResult{Transitioned: true}, nil)

		fields := map[string]string{
			"transaction_id": "T2",
			"status":         "expired",
			"amount":         "100",
		}

		body, _ := json.Marshal(map[string]any{
			"transaction_id": "T2",
			"status":         "expired",
			"amount":         json.Number("100"),
		})
		r := httptest.NewRequest("POST", "/webhooks/payments", bytes.NewBuffer(body))
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set(testProcessorConfig.SignatureHeader, verifier.Sign(fields))

		w := httptest.NewRecorder()
		handler.HandleNotification(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		reconciler.AssertExpectations(t)
	})

	t.Run("malformed json body", func(t *testing.T) {
		handler, _, _ := newWebhookTest()

		r := httptest.NewRequest("POST", "/webhooks/payments", bytes.NewBuffer([]byte("not-json")))
		r.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		handler.HandleNotification(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
