package service

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"admin-payments/internal/acquiring"
	"admin-payments/internal/domain"
	"admin-payments/internal/errors"
)

// HandleNotification processes a gateway callback. The raw payload is always
// logged to payment_notifications; a verified notification carrying a known
// status then moves the matching transaction, in the same database transaction.
func (s *PaymentService) HandleNotification(ctx context.Context, payload []byte) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	fields := map[string]interface{}{}
	if err := dec.Decode(&fields); err != nil {
		return errors.NewAppError(errors.InvalidInput, "invalid notification body").WithDetails(err.Error())
	}

	notification := &domain.Notification{
		ProviderPaymentID: fieldString(fields, "PaymentId"),
		Status:            acquiring.Status(fieldString(fields, "Status")),
		Payload:           json.RawMessage(payload),
		TokenValid:        acquiring.VerifyToken(fields, s.cfg.TerminalPassword),
	}
	orderID := fieldString(fields, "OrderId")
	if id, ok := domain.ParseOrderID(orderID); ok {
		notification.TransactionID = &id
	}

	log := s.logger.WithFields(logrus.Fields{
		"order_id":            orderID,
		"provider_payment_id": notification.ProviderPaymentID,
		"status":              notification.Status,
	})

	if !notification.TokenValid {
		log.Warn("Notification token mismatch")
		// Keep the evidence but do not act on it.
		notification.TransactionID = nil
		if err := s.uow.WithTransaction(ctx, func(repos domain.Repositories) error {
			return repos.Notifications().SaveNotification(ctx, notification)
		}); err != nil {
			log.WithError(err).Error("Failed to store rejected notification")
		}
		return errors.ErrInvalidToken
	}

	updated := false
	err := s.uow.WithTransaction(ctx, func(repos domain.Repositories) error {
		if notification.TransactionID == nil {
			log.Warn("Notification for unknown order")
			return repos.Notifications().SaveNotification(ctx, notification)
		}

		tx, err := repos.Transactions().GetTransactionByID(ctx, *notification.TransactionID)
		if err != nil {
			return err
		}
		if tx == nil {
			log.Warn("Notification for missing transaction")
			notification.TransactionID = nil
			return repos.Notifications().SaveNotification(ctx, notification)
		}

		if err := repos.Notifications().SaveNotification(ctx, notification); err != nil {
			return err
		}

		if notification.Status == tx.Status {
			return nil
		}
		if !notification.Status.IsKnown() {
			log.Warn("Notification carries unknown status, not persisted")
			return nil
		}
		if !tx.Status.Advances(notification.Status) {
			log.WithField("current_status", tx.Status).Info("Notification does not advance transaction, status kept")
			return nil
		}
		if _, err := repos.Transactions().UpdateTransactionStatus(ctx, tx.ID, notification.Status); err != nil {
			return err
		}
		updated = true
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to apply notification")
		return err
	}

	if updated {
		s.invalidateCache(ctx)
		log.Info("Transaction status updated from notification")
	}
	return nil
}

func fieldString(fields map[string]interface{}, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
