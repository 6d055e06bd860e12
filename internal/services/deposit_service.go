package services

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"github.com/skyrent/backend/internal/config"
	"github.com/skyrent/backend/internal/models"
)

// DepositService issues deposits against the payment processor and exposes
// the user-facing enquiry endpoints. Status changes never happen here; only
// the reconciliation engine moves a record forward.
type DepositService struct {
	db        *sql.DB
	store     *PaymentStore
	ledger    *LedgerService
	validator *ValidationHelper
	processor config.ProcessorConfig
}

func NewDepositService(db *sql.DB, processor config.ProcessorConfig) *DepositService {
	return &DepositService{
		db:        db,
		store:     NewPaymentStore(db),
		ledger:    NewLedgerService(db),
		validator: NewValidationHelper(),
		processor: processor,
	}
}

// CreateDeposit issues a new deposit
// @Summary Create a deposit
// @Description Issue a pending deposit and return the processor checkout URL with a QR code
// @Tags deposits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param deposit body object{amount=number,currency=string} true "Deposit request"
// @Success 201 {object} object{transaction_id=string,status=string,checkout_url=string,qr_code=string}
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /deposits [post]
func (ds *DepositService) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount   float64 `json:"amount" validate:"required,gt=0,max=1000000"`
		Currency string  `json:"currency" validate:"required,len=3"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := ds.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	record := &models.PaymentRecord{
		TransactionID: uuid.NewString(),
		UserID:        userID,
		Amount:        req.Amount,
	}

	if err := ds.store.Create(record); err != nil {
		log.Printf("[DEPOSIT] Failed to create payment record: %v", err)
		SendErrorResponse(w, "Failed to create deposit", http.StatusInternalServerError, nil)
		return
	}

	checkoutURL := fmt.Sprintf("%s/%s",
		strings.TrimRight(ds.processor.CheckoutBaseURL, "/"), record.TransactionID)

	// QR of the checkout URL for wallet apps. Optional on failure.
	var qrBase64 string
	if png, err := qrcode.Encode(checkoutURL, qrcode.Medium, 256); err == nil {
		qrBase64 = base64.StdEncoding.EncodeToString(png)
	} else {
		log.Printf("[DEPOSIT] Failed to generate QR for %s: %v", record.TransactionID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"transaction_id": record.TransactionID,
		"status":         record.Status,
		"checkout_url":   checkoutURL,
		"qr_code":        qrBase64,
	})
}

// GetDeposit retrieves one of the caller's deposits
// @Summary Get deposit by transaction ID
// @Tags deposits
// @Produce json
// @Security BearerAuth
// @Param txId path string true "Transaction ID"
// @Success 200 {object} models.PaymentRecord
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /deposits/{txId} [get]
func (ds *DepositService) GetDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	txID := chi.URLParam(r, "txId")

	record, err := ds.store.FindByTransactionID(txID)
	if err == ErrUnknownTransaction {
		SendErrorResponse(w, "Deposit not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to fetch deposit", http.StatusInternalServerError, nil)
		return
	}

	// Deposits are owned by exactly one user; never leak other users' rows.
	if record.UserID != userID {
		SendErrorResponse(w, "Deposit not found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// ListDeposits lists the caller's deposits, most recent first
// @Summary List deposits
// @Tags deposits
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of deposits to return (default 20, max 100)"
// @Success 200 {object} object{deposits=[]models.PaymentRecord,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /deposits [get]
func (ds *DepositService) ListDeposits(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Limit int `validate:"omitempty,min=1,max=100"`
	}
	req.Limit = 20

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			req.Limit = l
		}
	}

	if err := ds.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	deposits, err := ds.store.ListByUser(userID, req.Limit)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch deposits", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"deposits": deposits,
		"count":    len(deposits),
	})
}

// AccountBalance returns the caller's balance and lifetime earnings
// @Summary Get account balance
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Account
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /accounts/balance [get]
func (ds *DepositService) AccountBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	account, err := ds.ledger.Balance(userID)
	if err == ErrAccountNotFound {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}
