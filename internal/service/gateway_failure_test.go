package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"admin-payments/internal/acquiring"
	"admin-payments/internal/errors"
)

// A proxy error page in front of the gateway must still fail the payment.
func TestCreate_GatewayProxyErrorMarksTransactionFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html><body><h1>502 Bad Gateway</h1></body></html>"))
	}))
	defer srv.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	client, err := acquiring.NewClient(acquiring.Config{
		TerminalKey: "TestTerminal",
		Password:    testPassword,
		APIURL:      srv.URL,
	}, logger)
	require.NoError(t, err)

	f := newFixture()
	f.service.gateway = client
	amount := decimal.NewFromInt(50)

	f.repo.On("CreateTransaction", mock.Anything, int64(1), amount).Return(newTx(12, acquiring.StatusNew, nil), nil)
	f.repo.On("UpdateTransactionStatus", mock.Anything, int64(12), acquiring.StatusError).Return(newTx(12, acquiring.StatusError, nil), nil)

	_, err = f.service.Create(ctx, CreatePaymentRequest{AdminID: 1, Amount: amount})

	appErr := requireAppError(t, err, errors.ProviderError)
	assert.Contains(t, appErr.Details, "502 Bad Gateway")
	f.repo.AssertExpectations(t)
	f.repo.AssertNotCalled(t, "UpdateTransactionWithPaymentDetails", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
