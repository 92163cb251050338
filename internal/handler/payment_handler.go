package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"admin-payments/internal/acquiring"
	"admin-payments/internal/domain"
	"admin-payments/internal/errors"
	"admin-payments/internal/service"
)

const maxNotificationSize = 64 << 10

// PaymentService is what the payment routes call into.
type PaymentService interface {
	Create(ctx context.Context, req service.CreatePaymentRequest) (*service.CreatePaymentResult, error)
	CheckStatus(ctx context.Context, transactionID string) (*service.StatusResult, error)
	Confirm(ctx context.Context, transactionID string, actorID int64) (*service.ActionResult, error)
	Cancel(ctx context.Context, transactionID string, actorID int64) (*service.CancelResult, error)
	List(ctx context.Context) ([]*domain.Transaction, error)
	History(ctx context.Context, transactionID string) (*service.HistoryResult, error)
	HandleNotification(ctx context.Context, payload []byte) error
}

type PaymentHandler struct {
	payments PaymentService
	logger   *logrus.Logger
}

func NewPaymentHandler(payments PaymentService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

// RegisterRoutes mounts the payment routes on r.
func (h *PaymentHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/payments", h.ListPayments).Methods(http.MethodGet)
	r.HandleFunc("/payments", h.CreatePayment).Methods(http.MethodPost)
	r.HandleFunc("/payments/notifications", h.Notification).Methods(http.MethodPost)
	r.HandleFunc("/payments/{transaction_id}/status", h.CheckStatus).Methods(http.MethodGet)
	r.HandleFunc("/payments/{transaction_id}/history", h.History).Methods(http.MethodGet)
	r.HandleFunc("/payments/{transaction_id}/confirm", h.Confirm).Methods(http.MethodPost)
	r.HandleFunc("/payments/{transaction_id}/cancel", h.Cancel).Methods(http.MethodPost)
}

type CreatePaymentRequest struct {
	AdminID json.Number `json:"admin_id"`
	Amount  json.Number `json:"amount"`
}

type CreatePaymentResponse struct {
	Transaction *domain.Transaction `json:"transaction"`
	PaymentURL  string              `json:"payment_url"`
}

type HistoryResponse struct {
	Transaction   *domain.Transaction    `json:"transaction"`
	Actions       []*domain.AuditEntry   `json:"actions"`
	Notifications []*domain.Notification `json:"notifications"`
}

type ActionRequest struct {
	AdminID json.Number `json:"admin_id"`
}

type StatusResponse struct {
	TransactionID  int64            `json:"transaction_id"`
	Status         acquiring.Status `json:"status"`
	ProviderStatus acquiring.Status `json:"provider_status,omitempty"`
	Amount         decimal.Decimal  `json:"amount"`
	Message        string           `json:"message"`
	CheckedAt      time.Time        `json:"checked_at"`
}

type ActionResponse struct {
	TransactionID int64            `json:"transaction_id"`
	Status        acquiring.Status `json:"status"`
	Message       string           `json:"message"`
	Changed       bool             `json:"changed"`
}

type CancelResponse struct {
	ActionResponse
	RemoteCancel *RemoteCancelResponse `json:"remote_cancel,omitempty"`
}

type RemoteCancelResponse struct {
	Succeeded bool             `json:"succeeded"`
	Status    acquiring.Status `json:"status,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.payments.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transactions)
}

func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	adminID, appErr := parseAdminID(req.AdminID)
	if appErr != nil {
		writeError(w, appErr)
		return
	}

	if req.Amount == "" {
		writeError(w, errors.ErrAmountRequired)
		return
	}
	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidAmount, "invalid amount format").WithDetails(err.Error()))
		return
	}

	result, err := h.payments.Create(r.Context(), service.CreatePaymentRequest{AdminID: adminID, Amount: amount})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreatePaymentResponse{
		Transaction: result.Transaction,
		PaymentURL:  result.PaymentURL,
	})
}

func (h *PaymentHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.payments.CheckStatus(r.Context(), mux.Vars(r)["transaction_id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		TransactionID:  result.TransactionID,
		Status:         result.Status,
		ProviderStatus: result.ProviderStatus,
		Amount:         result.Amount,
		Message:        result.Message,
		CheckedAt:      time.Now().UTC(),
	})
}

func (h *PaymentHandler) History(w http.ResponseWriter, r *http.Request) {
	result, err := h.payments.History(r.Context(), mux.Vars(r)["transaction_id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Transaction:   result.Transaction,
		Actions:       result.Actions,
		Notifications: result.Notifications,
	})
}

func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	adminID, ok := decodeActor(w, r)
	if !ok {
		return
	}

	result, err := h.payments.Confirm(r.Context(), mux.Vars(r)["transaction_id"], adminID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActionResponse(*result))
}

func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	adminID, ok := decodeActor(w, r)
	if !ok {
		return
	}

	result, err := h.payments.Cancel(r.Context(), mux.Vars(r)["transaction_id"], adminID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := CancelResponse{ActionResponse: toActionResponse(result.ActionResult)}
	if result.Remote.Attempted {
		resp.RemoteCancel = &RemoteCancelResponse{
			Succeeded: result.Remote.Succeeded,
			Status:    result.Remote.Status,
			Error:     result.Remote.Error,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Notification receives gateway callbacks. The gateway expects a bare "OK".
func (h *PaymentHandler) Notification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationSize))
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "failed to read notification").WithDetails(err.Error()))
		return
	}

	if err := h.payments.HandleNotification(r.Context(), body); err != nil {
		h.logger.WithError(err).Warn("Notification rejected")
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func decodeActor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return 0, false
	}

	adminID, appErr := parseAdminID(req.AdminID)
	if appErr != nil {
		writeError(w, appErr)
		return 0, false
	}
	return adminID, true
}

func parseAdminID(raw json.Number) (int64, *errors.AppError) {
	if raw == "" {
		return 0, errors.ErrAdminIDRequired
	}
	id, err := strconv.ParseInt(raw.String(), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewAppError(errors.InvalidInput, "admin id must be a positive integer")
	}
	return id, nil
}

func toActionResponse(result service.ActionResult) ActionResponse {
	return ActionResponse{
		TransactionID: result.TransactionID,
		Status:        result.Status,
		Message:       result.Message,
		Changed:       result.Changed,
	}
}
