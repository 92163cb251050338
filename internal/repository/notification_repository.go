package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"admin-payments/internal/acquiring"
	"admin-payments/internal/domain"
	"admin-payments/internal/errors"
)

type notificationRepository struct {
	db     SQLExecutor
	logger *logrus.Logger
}

func NewNotificationRepository(db SQLExecutor, logger *logrus.Logger) domain.NotificationRepository {
	return &notificationRepository{
		db:     db,
		logger: logger,
	}
}

func (r *notificationRepository) SaveNotification(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO payment_notifications (transaction_id, provider_payment_id, status, payload, token_valid, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at`

	var transactionID sql.NullInt64
	if n.TransactionID != nil {
		transactionID = sql.NullInt64{Int64: *n.TransactionID, Valid: true}
	}
	payload := []byte(n.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	err := r.db.QueryRowContext(ctx, query, transactionID, n.ProviderPaymentID, string(n.Status), string(payload), n.TokenValid).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		r.logger.WithFields(logrus.Fields{"provider_payment_id": n.ProviderPaymentID, "error": err}).Error("Failed to store notification")
		return errors.NewAppError(errors.InternalError, "failed to store notification").WithDetails(err.Error())
	}
	return nil
}

func (r *notificationRepository) GetNotificationsByTransaction(ctx context.Context, transactionID int64) ([]*domain.Notification, error) {
	query := `
		SELECT id, transaction_id, provider_payment_id, status, payload, token_valid, created_at
		FROM payment_notifications
		WHERE transaction_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		r.logger.WithFields(logrus.Fields{"transaction_id": transactionID, "error": err}).Error("Failed to query notifications")
		return nil, errors.NewAppError(errors.InternalError, "failed to list notifications").WithDetails(err.Error())
	}
	defer rows.Close()

	notifications := make([]*domain.Notification, 0)
	for rows.Next() {
		var (
			n       domain.Notification
			txID    sql.NullInt64
			status  string
			payload []byte
		)
		if err := rows.Scan(&n.ID, &txID, &n.ProviderPaymentID, &status, &payload, &n.TokenValid, &n.CreatedAt); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan notification").WithDetails(err.Error())
		}
		if txID.Valid {
			id := txID.Int64
			n.TransactionID = &id
		}
		n.Status = acquiring.Status(status)
		n.Payload = json.RawMessage(payload)
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to list notifications").WithDetails(err.Error())
	}
	return notifications, nil
}
