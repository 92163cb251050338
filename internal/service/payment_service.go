package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"admin-payments/internal/acquiring"
	"admin-payments/internal/domain"
	"admin-payments/internal/errors"
)

const (
	transactionType         = "admin_payment"
	defaultPendingBatchSize = 100
)

var (
	minAmount = decimal.NewFromInt(10)
	maxAmount = decimal.NewFromInt(100000)
)

// Gateway is the part of the acquiring client the payment flows need.
type Gateway interface {
	Init(ctx context.Context, req acquiring.PaymentRequest) (*acquiring.Response, error)
	GetState(ctx context.Context, opts acquiring.GetStateOptions) (*acquiring.Response, error)
	Cancel(ctx context.Context, opts acquiring.CancelOptions) (*acquiring.Response, error)
}

// TransactionCache caches the transaction list. Implementations may fail;
// the service then falls back to the database. SetTransactions must drop a
// list read at a version that Invalidate has since moved past.
type TransactionCache interface {
	GetTransactions(ctx context.Context) ([]*domain.Transaction, bool, error)
	Version(ctx context.Context) (int64, error)
	SetTransactions(ctx context.Context, version int64, transactions []*domain.Transaction) error
	Invalidate(ctx context.Context) error
}

type Config struct {
	NotificationURL string
	SuccessURL      string
	FailURL         string
	// TerminalPassword verifies the Token of inbound notifications.
	TerminalPassword string
	PendingBatchSize int
}

type Option func(*PaymentService)

func WithCache(cache TransactionCache) Option {
	return func(s *PaymentService) {
		s.cache = cache
	}
}

type PaymentService struct {
	transactions domain.TransactionRepository
	audit        domain.AuditLog
	uow          domain.UnitOfWork
	gateway      Gateway
	cache        TransactionCache
	cfg          Config
	logger       *logrus.Logger
}

func NewPaymentService(
	transactions domain.TransactionRepository,
	audit domain.AuditLog,
	uow domain.UnitOfWork,
	gateway Gateway,
	cfg Config,
	logger *logrus.Logger,
	opts ...Option,
) *PaymentService {
	if cfg.PendingBatchSize <= 0 {
		cfg.PendingBatchSize = defaultPendingBatchSize
	}
	s := &PaymentService{
		transactions: transactions,
		audit:        audit,
		uow:          uow,
		gateway:      gateway,
		cfg:          cfg,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreatePaymentRequest struct {
	AdminID int64
	Amount  decimal.Decimal
}

type CreatePaymentResult struct {
	Transaction *domain.Transaction
	PaymentURL  string
}

// StatusResult is what a status-sync reports back.
type StatusResult struct {
	TransactionID int64
	Status        acquiring.Status
	// ProviderStatus is empty when the gateway was not asked.
	ProviderStatus acquiring.Status
	Amount         decimal.Decimal
	Message        string
	Updated        bool
}

// ActionResult is the outcome of confirm and cancel. Changed is false when
// the call was a no-op on an already settled transaction.
type ActionResult struct {
	TransactionID int64
	Status        acquiring.Status
	Message       string
	Changed       bool
}

// RemoteCancelOutcome reports the best-effort gateway cancel. A failed remote
// cancel never fails the local one.
type RemoteCancelOutcome struct {
	Attempted bool
	Succeeded bool
	Status    acquiring.Status
	Error     string
}

type CancelResult struct {
	ActionResult
	Remote RemoteCancelOutcome
}

// HistoryResult is everything recorded about one transaction.
type HistoryResult struct {
	Transaction   *domain.Transaction
	Actions       []*domain.AuditEntry
	Notifications []*domain.Notification
}

type SyncReport struct {
	Checked int
	Updated int
	Failed  int
}

// Create registers a top-up locally and with the gateway.
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	s.logger.WithFields(logrus.Fields{"admin_id": req.AdminID, "amount": req.Amount.String()}).Info("Creating payment")

	if err := validateCreate(req); err != nil {
		return nil, err
	}

	tx, err := s.transactions.CreateTransaction(ctx, req.AdminID, req.Amount)
	if err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)

	resp, err := s.gateway.Init(ctx, acquiring.PaymentRequest{
		OrderID:         tx.OrderID(),
		Amount:          decimal.NewFromInt(acquiring.MinorUnits(req.Amount)),
		Description:     fmt.Sprintf("Admin balance top-up for admin %d", req.AdminID),
		Data:            map[string]string{"TransactionType": transactionType},
		NotificationURL: s.cfg.NotificationURL,
		SuccessURL:      s.cfg.SuccessURL,
		FailURL:         s.cfg.FailURL,
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{"transaction_id": tx.ID, "error": err}).Error("Payment initialization failed")
		return nil, gatewayError(err)
	}

	if !resp.Success {
		s.logger.WithFields(logrus.Fields{
			"transaction_id": tx.ID,
			"error_code":     resp.ErrorCode,
			"message":        resp.ErrorMessage(),
		}).Error("Gateway rejected payment initialization")

		if _, err := s.transactions.UpdateTransactionStatus(ctx, tx.ID, acquiring.StatusError); err != nil {
			return nil, err
		}
		s.invalidateCache(ctx)
		return nil, errors.NewAppError(errors.ProviderError, "payment initialization failed").WithDetails(resp.ErrorMessage())
	}

	updated, err := s.transactions.UpdateTransactionWithPaymentDetails(ctx, tx.ID, resp.PaymentID.String(), resp.PaymentURL)
	if err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)

	s.audit.LogAction(ctx, req.AdminID, domain.ActionCreatePayment, map[string]interface{}{
		"transaction_id":      tx.ID,
		"amount":              req.Amount.String(),
		"provider_payment_id": resp.PaymentID.String(),
	})

	s.logger.WithFields(logrus.Fields{"transaction_id": tx.ID, "provider_payment_id": resp.PaymentID}).Info("Payment created")
	return &CreatePaymentResult{Transaction: updated, PaymentURL: resp.PaymentURL}, nil
}

// CheckStatus syncs one transaction with the gateway.
func (s *PaymentService) CheckStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	tx, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if !tx.HasProviderPayment() {
		return &StatusResult{
			TransactionID: tx.ID,
			Status:        tx.Status,
			Amount:        tx.Amount,
			Message:       "Payment was not initialized with the gateway",
		}, nil
	}

	return s.syncTransaction(ctx, tx, false)
}

// syncTransaction stores the gateway's status for tx. With forwardOnly set,
// a status that does not advance the lifecycle is reported but not written,
// so an admin's confirm is never rolled back by a background pass.
func (s *PaymentService) syncTransaction(ctx context.Context, tx *domain.Transaction, forwardOnly bool) (*StatusResult, error) {
	resp, err := s.gateway.GetState(ctx, acquiring.GetStateOptions{PaymentID: *tx.ProviderPaymentID})
	if err != nil {
		s.logger.WithFields(logrus.Fields{"transaction_id": tx.ID, "error": err}).Error("Failed to get payment state")
		return nil, gatewayError(err)
	}
	if !resp.Success {
		return nil, errors.NewAppError(errors.ProviderError, "failed to get payment status").WithDetails(resp.ErrorMessage())
	}

	result := &StatusResult{
		TransactionID:  tx.ID,
		Status:         resp.Status,
		ProviderStatus: resp.Status,
		Amount:         tx.Amount,
		Message:        resp.Status.Message(),
	}

	if resp.Status == tx.Status {
		return result, nil
	}
	if !resp.Status.IsKnown() {
		s.logger.WithFields(logrus.Fields{"transaction_id": tx.ID, "status": resp.Status}).Warn("Gateway reported unknown status, not persisted")
		return result, nil
	}
	if forwardOnly && !tx.Status.Advances(resp.Status) {
		s.logger.WithFields(logrus.Fields{
			"transaction_id": tx.ID,
			"status":         tx.Status,
			"gateway_status": resp.Status,
		}).Debug("Gateway status does not advance transaction, skipped")
		return result, nil
	}

	if _, err := s.transactions.UpdateTransactionStatus(ctx, tx.ID, resp.Status); err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	result.Updated = true

	s.logger.WithFields(logrus.Fields{
		"transaction_id":  tx.ID,
		"previous_status": tx.Status,
		"status":          resp.Status,
	}).Info("Transaction status synced")
	return result, nil
}

// Confirm marks a transaction CONFIRMED. Repeated calls are no-ops.
func (s *PaymentService) Confirm(ctx context.Context, transactionID string, actorID int64) (*ActionResult, error) {
	if actorID <= 0 {
		return nil, errors.ErrAdminIDRequired
	}
	tx, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if tx.Status == acquiring.StatusConfirmed || tx.Status == acquiring.StatusCompleted {
		return &ActionResult{TransactionID: tx.ID, Status: tx.Status, Message: "Payment already confirmed"}, nil
	}

	if _, err := s.transactions.UpdateTransactionStatus(ctx, tx.ID, acquiring.StatusConfirmed); err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)

	s.audit.LogAction(ctx, actorID, domain.ActionConfirmPayment, map[string]interface{}{
		"transaction_id":  tx.ID,
		"amount":          tx.Amount.String(),
		"previous_status": tx.Status,
	})

	s.logger.WithFields(logrus.Fields{"transaction_id": tx.ID, "actor": actorID}).Info("Payment confirmed")
	return &ActionResult{
		TransactionID: tx.ID,
		Status:        acquiring.StatusConfirmed,
		Message:       "Payment confirmed",
		Changed:       true,
	}, nil
}

// Cancel cancels locally, asking the gateway to cancel too when the payment
// reached it.
func (s *PaymentService) Cancel(ctx context.Context, transactionID string, actorID int64) (*CancelResult, error) {
	if actorID <= 0 {
		return nil, errors.ErrAdminIDRequired
	}
	tx, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if tx.Status == acquiring.StatusCancelled || tx.Status == acquiring.StatusRejected {
		return &CancelResult{
			ActionResult: ActionResult{TransactionID: tx.ID, Status: tx.Status, Message: "Payment already cancelled"},
		}, nil
	}

	var remote RemoteCancelOutcome
	if tx.HasProviderPayment() {
		remote = s.cancelRemote(ctx, tx)
	}

	if _, err := s.transactions.UpdateTransactionStatus(ctx, tx.ID, acquiring.StatusCancelled); err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)

	details := map[string]interface{}{
		"transaction_id":  tx.ID,
		"amount":          tx.Amount.String(),
		"previous_status": tx.Status,
	}
	if remote.Attempted {
		details["remote_cancel_succeeded"] = remote.Succeeded
	}
	s.audit.LogAction(ctx, actorID, domain.ActionCancelPayment, details)

	s.logger.WithFields(logrus.Fields{"transaction_id": tx.ID, "actor": actorID}).Info("Payment cancelled")
	return &CancelResult{
		ActionResult: ActionResult{
			TransactionID: tx.ID,
			Status:        acquiring.StatusCancelled,
			Message:       "Payment cancelled",
			Changed:       true,
		},
		Remote: remote,
	}, nil
}

func (s *PaymentService) cancelRemote(ctx context.Context, tx *domain.Transaction) RemoteCancelOutcome {
	outcome := RemoteCancelOutcome{Attempted: true}
	log := s.logger.WithFields(logrus.Fields{"transaction_id": tx.ID, "provider_payment_id": *tx.ProviderPaymentID})

	resp, err := s.gateway.Cancel(ctx, acquiring.CancelOptions{
		PaymentID:         *tx.ProviderPaymentID,
		ExternalRequestID: uuid.NewString(),
	})
	switch {
	case err != nil:
		outcome.Error = err.Error()
		log.WithError(err).Warn("Gateway cancel failed, cancelling locally")
	case !resp.Success:
		outcome.Error = resp.ErrorMessage()
		log.WithField("message", resp.ErrorMessage()).Warn("Gateway refused cancel, cancelling locally")
	default:
		outcome.Succeeded = true
		outcome.Status = resp.Status
	}
	return outcome
}

// History returns a transaction with its audit trail and gateway callbacks.
func (s *PaymentService) History(ctx context.Context, transactionID string) (*HistoryResult, error) {
	tx, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	actions, err := s.audit.GetActionsByTransaction(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	notifications, err := s.uow.Notifications().GetNotificationsByTransaction(ctx, tx.ID)
	if err != nil {
		return nil, err
	}

	return &HistoryResult{Transaction: tx, Actions: actions, Notifications: notifications}, nil
}

// List returns every transaction, newest first.
func (s *PaymentService) List(ctx context.Context) ([]*domain.Transaction, error) {
	var (
		version   int64
		cacheable bool
	)
	if s.cache != nil {
		cached, hit, err := s.cache.GetTransactions(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("Transaction cache read failed")
		} else if hit {
			return cached, nil
		}

		// Taken before the database read so a write racing with it wins.
		if version, err = s.cache.Version(ctx); err != nil {
			s.logger.WithError(err).Warn("Transaction cache version read failed")
		} else {
			cacheable = true
		}
	}

	transactions, err := s.transactions.GetAllTransactions(ctx)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := s.cache.SetTransactions(ctx, version, transactions); err != nil {
			s.logger.WithError(err).Warn("Transaction cache write failed")
		}
	}
	return transactions, nil
}

// SyncPending runs a status-sync over every transaction still waiting on the
// gateway. One failure does not stop the pass.
func (s *PaymentService) SyncPending(ctx context.Context) (SyncReport, error) {
	var report SyncReport

	pending, err := s.transactions.GetPendingTransactions(ctx, s.cfg.PendingBatchSize)
	if err != nil {
		return report, err
	}

	for _, tx := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		result, err := s.syncTransaction(ctx, tx, true)
		if err != nil {
			report.Failed++
			s.logger.WithFields(logrus.Fields{"transaction_id": tx.ID, "error": err}).Warn("Pending transaction sync failed")
			continue
		}
		if result.Updated {
			report.Updated++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"checked": report.Checked,
		"updated": report.Updated,
		"failed":  report.Failed,
	}).Info("Pending transactions synced")
	return report, nil
}

func (s *PaymentService) getTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	id, err := strconv.ParseInt(transactionID, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.ErrInvalidTransactionID
	}

	tx, err := s.transactions.GetTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, errors.ErrTransactionNotFound
	}
	return tx, nil
}

func (s *PaymentService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WithError(err).Warn("Transaction cache invalidation failed")
	}
}

func validateCreate(req CreatePaymentRequest) error {
	if req.AdminID <= 0 {
		return errors.ErrAdminIDRequired
	}
	if req.Amount.IsZero() {
		return errors.ErrAmountRequired
	}
	if req.Amount.LessThan(minAmount) || req.Amount.GreaterThan(maxAmount) {
		return errors.ErrAmountOutOfRange
	}
	return nil
}

// gatewayError maps a client error onto the API taxonomy.
func gatewayError(err error) error {
	var vErr *acquiring.ValidationError
	if stderrors.As(err, &vErr) {
		return errors.NewAppError(errors.ValidationFailed, vErr.Message).WithDetails(vErr.Field)
	}
	if stderrors.Is(err, acquiring.ErrNoResponse) {
		return errors.NewAppError(errors.GatewayUnavailable, "payment gateway unavailable").WithDetails(err.Error())
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewAppError(errors.GatewayUnavailable, "payment gateway request aborted").WithDetails(err.Error())
	}
	return errors.NewAppError(errors.ProviderError, "payment gateway request failed").WithDetails(err.Error())
}
