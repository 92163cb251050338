package repository

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"admin-payments/internal/acquiring"
	"admin-payments/internal/domain"
	"admin-payments/internal/errors"
)

const (
	transactionColumns = `id, admin_id, amount, provider_payment_id, payment_url, status, created_at, updated_at`

	uniqueViolation = "23505"
)

// terminalStatuses are skipped by GetPendingTransactions.
var terminalStatuses = []string{
	string(acquiring.StatusCompleted),
	string(acquiring.StatusRejected),
	string(acquiring.StatusReversed),
	string(acquiring.StatusRefunded),
	string(acquiring.StatusCancelled),
	string(acquiring.StatusError),
}

type transactionRepository struct {
	db     SQLExecutor
	logger *logrus.Logger
}

func NewTransactionRepository(db SQLExecutor, logger *logrus.Logger) domain.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *transactionRepository) CreateTransaction(ctx context.Context, adminID int64, amount decimal.Decimal) (*domain.Transaction, error) {
	query := `
		INSERT INTO admin_transactions (admin_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING ` + transactionColumns

	tx, err := r.scanTransaction(r.db.QueryRowContext(ctx, query, adminID, amount.String(), string(acquiring.StatusNew)))
	if err != nil {
		r.logger.WithFields(logrus.Fields{"admin_id": adminID, "amount": amount.String(), "error": err}).Error("Failed to create transaction")
		return nil, errors.NewAppError(errors.InternalError, "failed to create transaction").WithDetails(err.Error())
	}

	r.logger.WithFields(logrus.Fields{"transaction_id": tx.ID, "admin_id": adminID}).Info("Transaction created")
	return tx, nil
}

func (r *transactionRepository) UpdateTransactionWithPaymentDetails(ctx context.Context, id int64, providerPaymentID, paymentURL string) (*domain.Transaction, error) {
	query := `
		UPDATE admin_transactions
		SET provider_payment_id = $1, payment_url = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING ` + transactionColumns

	tx, err := r.scanTransaction(r.db.QueryRowContext(ctx, query, providerPaymentID, paymentURL, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrTransactionNotFound
		}
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			r.logger.WithFields(logrus.Fields{"transaction_id": id, "provider_payment_id": providerPaymentID}).Warn("Provider payment id already assigned")
			return nil, errors.NewAppError(errors.InternalError, "provider payment id already assigned to another transaction").WithDetails(providerPaymentID)
		}
		r.logger.WithFields(logrus.Fields{"transaction_id": id, "error": err}).Error("Failed to store payment details")
		return nil, errors.NewAppError(errors.InternalError, "failed to update transaction").WithDetails(err.Error())
	}

	r.logger.WithFields(logrus.Fields{"transaction_id": id, "provider_payment_id": providerPaymentID}).Info("Payment details stored")
	return tx, nil
}

func (r *transactionRepository) UpdateTransactionStatus(ctx context.Context, id int64, status acquiring.Status) (*domain.Transaction, error) {
	if !status.IsKnown() {
		return nil, errors.NewAppErrorf(errors.InternalError, "refusing to store unknown status %q", status)
	}

	query := `
		UPDATE admin_transactions
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + transactionColumns

	tx, err := r.scanTransaction(r.db.QueryRowContext(ctx, query, string(status), id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			r.logger.WithField("transaction_id", id).Warn("No transaction found to update")
			return nil, errors.ErrTransactionNotFound
		}
		r.logger.WithFields(logrus.Fields{"transaction_id": id, "status": status, "error": err}).Error("Failed to update transaction status")
		return nil, errors.NewAppError(errors.InternalError, "failed to update transaction status").WithDetails(err.Error())
	}

	r.logger.WithFields(logrus.Fields{"transaction_id": id, "status": status}).Info("Transaction status updated")
	return tx, nil
}

func (r *transactionRepository) GetTransactionByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM admin_transactions WHERE id = $1`

	tx, err := r.scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithFields(logrus.Fields{"transaction_id": id, "error": err}).Error("Failed to get transaction")
		return nil, errors.NewAppError(errors.InternalError, "failed to get transaction").WithDetails(err.Error())
	}
	return tx, nil
}

func (r *transactionRepository) GetAllTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM admin_transactions ORDER BY created_at DESC, id DESC`

	return r.list(ctx, "failed to list transactions", query)
}

func (r *transactionRepository) GetPendingTransactions(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM admin_transactions
		WHERE provider_payment_id IS NOT NULL AND status <> ALL($1)
		ORDER BY updated_at ASC
		LIMIT $2`

	return r.list(ctx, "failed to list pending transactions", query, pq.Array(terminalStatuses), limit)
}

func (r *transactionRepository) list(ctx context.Context, failure, query string, args ...interface{}) ([]*domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).Error("Failed to query transactions")
		return nil, errors.NewAppError(errors.InternalError, failure).WithDetails(err.Error())
	}
	defer rows.Close()

	transactions := make([]*domain.Transaction, 0)
	for rows.Next() {
		tx, err := r.scanTransaction(rows)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, failure).WithDetails(err.Error())
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, failure).WithDetails(err.Error())
	}
	return transactions, nil
}

func (r *transactionRepository) scanTransaction(row scanner) (*domain.Transaction, error) {
	var (
		tx                domain.Transaction
		amountStr         string
		providerPaymentID sql.NullString
		paymentURL        sql.NullString
		status            string
	)

	err := row.Scan(
		&tx.ID,
		&tx.AdminID,
		&amountStr,
		&providerPaymentID,
		&paymentURL,
		&status,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		r.logger.WithFields(logrus.Fields{"transaction_id": tx.ID, "amount": amountStr}).Error("Failed to parse amount")
		return nil, err
	}
	tx.Amount = amount
	tx.Status = acquiring.Status(status)

	if providerPaymentID.Valid {
		tx.ProviderPaymentID = &providerPaymentID.String
	}
	if paymentURL.Valid {
		tx.PaymentURL = &paymentURL.String
	}

	return &tx, nil
}
