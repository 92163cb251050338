package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"admin-payments/internal/acquiring"
	"admin-payments/internal/domain"
	"admin-payments/internal/errors"
	"admin-payments/internal/service"
)

type mockPaymentService struct {
	mock.Mock
}

func (m *mockPaymentService) Create(ctx context.Context, req service.CreatePaymentRequest) (*service.CreatePaymentResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*service.CreatePaymentResult)
	return res, args.Error(1)
}

func (m *mockPaymentService) CheckStatus(ctx context.Context, transactionID string) (*service.StatusResult, error) {
	args := m.Called(ctx, transactionID)
	res, _ := args.Get(0).(*service.StatusResult)
	return res, args.Error(1)
}

func (m *mockPaymentService) Confirm(ctx context.Context, transactionID string, actorID int64) (*service.ActionResult, error) {
	args := m.Called(ctx, transactionID, actorID)
	res, _ := args.Get(0).(*service.ActionResult)
	return res, args.Error(1)
}

func (m *mockPaymentService) Cancel(ctx context.Context, transactionID string, actorID int64) (*service.CancelResult, error) {
	args := m.Called(ctx, transactionID, actorID)
	res, _ := args.Get(0).(*service.CancelResult)
	return res, args.Error(1)
}

func (m *mockPaymentService) List(ctx context.Context) ([]*domain.Transaction, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]*domain.Transaction)
	return res, args.Error(1)
}

func (m *mockPaymentService) History(ctx context.Context, transactionID string) (*service.HistoryResult, error) {
	args := m.Called(ctx, transactionID)
	res, _ := args.Get(0).(*service.HistoryResult)
	return res, args.Error(1)
}

func (m *mockPaymentService) HandleNotification(ctx context.Context, payload []byte) error {
	return m.Called(ctx, payload).Error(0)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *Error          `json:"error"`
}

func setup() (*mockPaymentService, *mux.Router) {
	svc := &mockPaymentService{}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	router := mux.NewRouter()
	NewPaymentHandler(svc, logger).RegisterRoutes(router)
	return svc, router
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestCreatePayment(t *testing.T) {
	svc, router := setup()
	url := "https://securepay.tinkoff.ru/new/abc"
	paymentID := "13660"

	svc.On("Create", mock.Anything, mock.MatchedBy(func(req service.CreatePaymentRequest) bool {
		return req.AdminID == 1 && req.Amount.Equal(decimal.NewFromInt(50))
	})).Return(&service.CreatePaymentResult{
		Transaction: &domain.Transaction{ID: 7, AdminID: 1, Amount: decimal.NewFromInt(50), Status: acquiring.StatusNew, ProviderPaymentID: &paymentID, PaymentURL: &url},
		PaymentURL:  url,
	}, nil)

	rec, env := do(t, router, http.MethodPost, "/payments", `{"admin_id": 1, "amount": "50"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp CreatePaymentResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, url, resp.PaymentURL)
	assert.Equal(t, int64(7), resp.Transaction.ID)
	assert.Equal(t, acquiring.StatusNew, resp.Transaction.Status)
}

func TestCreatePayment_BadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{`, string(errors.InvalidInput)},
		{"missing admin", `{"amount": 50}`, string(errors.InvalidInput)},
		{"negative admin", `{"admin_id": -3, "amount": 50}`, string(errors.InvalidInput)},
		{"missing amount", `{"admin_id": 1}`, string(errors.InvalidAmount)},
		{"text amount", `{"admin_id": 1, "amount": "lots"}`, string(errors.InvalidInput)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, router := setup()

			rec, env := do(t, router, http.MethodPost, "/payments", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreatePayment_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"out of range", errors.ErrAmountOutOfRange, http.StatusBadRequest},
		{"provider", errors.NewAppError(errors.ProviderError, "payment initialization failed").WithDetails("Terminal blocked"), http.StatusBadGateway},
		{"unreachable", errors.NewAppError(errors.GatewayUnavailable, "payment gateway unavailable"), http.StatusServiceUnavailable},
		{"unexpected", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, router := setup()
			svc.On("Create", mock.Anything, mock.Anything).Return(nil, tt.err)

			rec, env := do(t, router, http.MethodPost, "/payments", `{"admin_id": "1", "amount": 5}`)

			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, env.Error)
		})
	}
}

func TestListPayments(t *testing.T) {
	svc, router := setup()
	svc.On("List", mock.Anything).Return([]*domain.Transaction{
		{ID: 2, Status: acquiring.StatusNew, Amount: decimal.NewFromInt(10)},
		{ID: 1, Status: acquiring.StatusCancelled, Amount: decimal.NewFromInt(20)},
	}, nil)

	rec, env := do(t, router, http.MethodGet, "/payments", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Transaction
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID)
}

func TestCheckStatus(t *testing.T) {
	svc, router := setup()
	svc.On("CheckStatus", mock.Anything, "3").Return(&service.StatusResult{
		TransactionID:  3,
		Status:         acquiring.StatusConfirmed,
		ProviderStatus: acquiring.StatusConfirmed,
		Amount:         decimal.NewFromInt(50),
		Message:        "Confirmed",
	}, nil)
	svc.On("CheckStatus", mock.Anything, "404").Return(nil, errors.ErrTransactionNotFound)

	rec, env := do(t, router, http.MethodGet, "/payments/3/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, acquiring.StatusConfirmed, resp.Status)
	assert.Equal(t, "Confirmed", resp.Message)

	rec, env = do(t, router, http.MethodGet, "/payments/404/status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(errors.TransactionNotFound), env.Error.Code)
}

func TestConfirm(t *testing.T) {
	svc, router := setup()
	svc.On("Confirm", mock.Anything, "5", int64(2)).Return(&service.ActionResult{
		TransactionID: 5,
		Status:        acquiring.StatusConfirmed,
		Message:       "Payment confirmed",
		Changed:       true,
	}, nil)

	rec, env := do(t, router, http.MethodPost, "/payments/5/confirm", `{"admin_id": 2}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ActionResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, acquiring.StatusConfirmed, resp.Status)
	assert.True(t, resp.Changed)
}

func TestConfirm_RequiresAdmin(t *testing.T) {
	svc, router := setup()

	for _, body := range []string{"", `{}`, `{"admin_id": 0}`} {
		rec, env := do(t, router, http.MethodPost, "/payments/5/confirm", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		require.NotNil(t, env.Error)
	}
	svc.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel_ReportsRemoteOutcome(t *testing.T) {
	svc, router := setup()
	svc.On("Cancel", mock.Anything, "6", int64(2)).Return(&service.CancelResult{
		ActionResult: service.ActionResult{TransactionID: 6, Status: acquiring.StatusCancelled, Message: "Payment cancelled", Changed: true},
		Remote:       service.RemoteCancelOutcome{Attempted: true, Error: "Wrong state"},
	}, nil)

	rec, env := do(t, router, http.MethodPost, "/payments/6/cancel", `{"admin_id": 2}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp CancelResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, acquiring.StatusCancelled, resp.Status)
	require.NotNil(t, resp.RemoteCancel)
	assert.False(t, resp.RemoteCancel.Succeeded)
	assert.Equal(t, "Wrong state", resp.RemoteCancel.Error)
}

func TestCancel_NoRemoteAttempt(t *testing.T) {
	svc, router := setup()
	svc.On("Cancel", mock.Anything, "6", int64(2)).Return(&service.CancelResult{
		ActionResult: service.ActionResult{TransactionID: 6, Status: acquiring.StatusCancelled, Changed: true},
	}, nil)

	rec, env := do(t, router, http.MethodPost, "/payments/6/cancel", `{"admin_id": 2}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, string(env.Data), "remote_cancel")
}

func TestNotification(t *testing.T) {
	svc, router := setup()
	body := `{"OrderId":"ADMIN-5","Status":"CONFIRMED","Token":"x"}`
	svc.On("HandleNotification", mock.Anything, []byte(body)).Return(nil)

	rec, _ := do(t, router, http.MethodPost, "/payments/notifications", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestNotification_BadToken(t *testing.T) {
	svc, router := setup()
	svc.On("HandleNotification", mock.Anything, mock.Anything).Return(errors.ErrInvalidToken)

	rec, env := do(t, router, http.MethodPost, "/payments/notifications", `{"Token":"bad"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(errors.InvalidToken), env.Error.Code)
	assert.NotEqual(t, "OK", rec.Body.String())
}

func TestHistory(t *testing.T) {
	svc, router := setup()
	txID := int64(5)
	svc.On("History", mock.Anything, "5").Return(&service.HistoryResult{
		Transaction: &domain.Transaction{ID: txID, Status: acquiring.StatusConfirmed, Amount: decimal.NewFromInt(50)},
		Actions: []*domain.AuditEntry{
			{ID: 1, Actor: 2, Action: domain.ActionConfirmPayment, Details: json.RawMessage(`{"transaction_id":5}`)},
		},
		Notifications: []*domain.Notification{
			{ID: 3, TransactionID: &txID, ProviderPaymentID: "13660", Status: acquiring.StatusConfirmed, Payload: json.RawMessage(`{}`), TokenValid: true},
		},
	}, nil)
	svc.On("History", mock.Anything, "6").Return(nil, errors.ErrTransactionNotFound)

	rec, env := do(t, router, http.MethodGet, "/payments/5/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, txID, resp.Transaction.ID)
	require.Len(t, resp.Actions, 1)
	assert.Equal(t, domain.ActionConfirmPayment, resp.Actions[0].Action)
	require.Len(t, resp.Notifications, 1)
	assert.True(t, resp.Notifications[0].TokenValid)

	rec, _ = do(t, router, http.MethodGet, "/payments/6/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
