package service

import (
	"context"
	"io"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"admin-payments/internal/acquiring"
	"admin-payments/internal/domain"
)

type mockTransactionRepository struct {
	mock.Mock
}

func (m *mockTransactionRepository) CreateTransaction(ctx context.Context, adminID int64, amount decimal.Decimal) (*domain.Transaction, error) {
	args := m.Called(ctx, adminID, amount)
	tx, _ := args.Get(0).(*domain.Transaction)
	return tx, args.Error(1)
}

func (m *mockTransactionRepository) UpdateTransactionWithPaymentDetails(ctx context.Context, id int64, providerPaymentID, paymentURL string) (*domain.Transaction, error) {
	args := m.Called(ctx, id, providerPaymentID, paymentURL)
	tx, _ := args.Get(0).(*domain.Transaction)
	return tx, args.Error(1)
}

func (m *mockTransactionRepository) UpdateTransactionStatus(ctx context.Context, id int64, status acquiring.Status) (*domain.Transaction, error) {
	args := m.Called(ctx, id, status)
	tx, _ := args.Get(0).(*domain.Transaction)
	return tx, args.Error(1)
}

func (m *mockTransactionRepository) GetTransactionByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	tx, _ := args.Get(0).(*domain.Transaction)
	return tx, args.Error(1)
}

func (m *mockTransactionRepository) GetAllTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	args := m.Called(ctx)
	txs, _ := args.Get(0).([]*domain.Transaction)
	return txs, args.Error(1)
}

func (m *mockTransactionRepository) GetPendingTransactions(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	args := m.Called(ctx, limit)
	txs, _ := args.Get(0).([]*domain.Transaction)
	return txs, args.Error(1)
}

type mockNotificationRepository struct {
	mock.Mock
}

func (m *mockNotificationRepository) SaveNotification(ctx context.Context, n *domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockNotificationRepository) GetNotificationsByTransaction(ctx context.Context, transactionID int64) ([]*domain.Notification, error) {
	args := m.Called(ctx, transactionID)
	ns, _ := args.Get(0).([]*domain.Notification)
	return ns, args.Error(1)
}

type mockAuditLogger struct {
	mock.Mock
}

func (m *mockAuditLogger) LogAction(ctx context.Context, actorID int64, action string, details map[string]interface{}) {
	m.Called(ctx, actorID, action, details)
}

func (m *mockAuditLogger) GetActionsByTransaction(ctx context.Context, transactionID int64) ([]*domain.AuditEntry, error) {
	args := m.Called(ctx, transactionID)
	entries, _ := args.Get(0).([]*domain.AuditEntry)
	return entries, args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Init(ctx context.Context, req acquiring.PaymentRequest) (*acquiring.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*acquiring.Response)
	return resp, args.Error(1)
}

func (m *mockGateway) GetState(ctx context.Context, opts acquiring.GetStateOptions) (*acquiring.Response, error) {
	args := m.Called(ctx, opts)
	resp, _ := args.Get(0).(*acquiring.Response)
	return resp, args.Error(1)
}

func (m *mockGateway) Cancel(ctx context.Context, opts acquiring.CancelOptions) (*acquiring.Response, error) {
	args := m.Called(ctx, opts)
	resp, _ := args.Get(0).(*acquiring.Response)
	return resp, args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetTransactions(ctx context.Context) ([]*domain.Transaction, bool, error) {
	args := m.Called(ctx)
	txs, _ := args.Get(0).([]*domain.Transaction)
	return txs, args.Bool(1), args.Error(2)
}

func (m *mockCache) Version(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCache) SetTransactions(ctx context.Context, version int64, transactions []*domain.Transaction) error {
	return m.Called(ctx, version, transactions).Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// fakeUnitOfWork runs fn directly against the mocks; rollback is not modelled.
type fakeUnitOfWork struct {
	transactions  *mockTransactionRepository
	notifications *mockNotificationRepository
	calls         int
}

func (u *fakeUnitOfWork) Transactions() domain.TransactionRepository   { return u.transactions }
func (u *fakeUnitOfWork) Notifications() domain.NotificationRepository { return u.notifications }

func (u *fakeUnitOfWork) WithTransaction(ctx context.Context, fn func(repos domain.Repositories) error) error {
	u.calls++
	return fn(u)
}

type fixture struct {
	repo          *mockTransactionRepository
	notifications *mockNotificationRepository
	audit         *mockAuditLogger
	gateway       *mockGateway
	uow           *fakeUnitOfWork
	service       *PaymentService
}

const testPassword = "secret"

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		repo:          &mockTransactionRepository{},
		notifications: &mockNotificationRepository{},
		audit:         &mockAuditLogger{},
		gateway:       &mockGateway{},
	}
	f.uow = &fakeUnitOfWork{transactions: f.repo, notifications: f.notifications}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f.service = NewPaymentService(f.repo, f.audit, f.uow, f.gateway, Config{
		NotificationURL:  "https://admin.example.com/payments/notifications",
		SuccessURL:       "https://panel.example.com/payments/success",
		FailURL:          "https://panel.example.com/payments/fail",
		TerminalPassword: testPassword,
	}, logger, opts...)
	return f
}

func strPtr(s string) *string {
	return &s
}

func newTx(id int64, status acquiring.Status, providerPaymentID *string) *domain.Transaction {
	return &domain.Transaction{
		ID:                id,
		AdminID:           1,
		Amount:            decimal.NewFromInt(50),
		ProviderPaymentID: providerPaymentID,
		Status:            status,
	}
}
