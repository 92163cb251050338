package domain

import (
	"context"
	"encoding/json"
	"time"

	"admin-payments/internal/acquiring"
)

// Notification is a payment callback as received from the gateway.
type Notification struct {
	ID                int64            `json:"id"`
	TransactionID     *int64           `json:"transaction_id,omitempty"`
	ProviderPaymentID string           `json:"provider_payment_id"`
	Status            acquiring.Status `json:"status"`
	Payload           json.RawMessage  `json:"payload"`
	TokenValid        bool             `json:"token_valid"`
	CreatedAt         time.Time        `json:"created_at"`
}

type NotificationRepository interface {
	SaveNotification(ctx context.Context, n *Notification) error
	GetNotificationsByTransaction(ctx context.Context, transactionID int64) ([]*Notification, error)
}

// Repositories groups the repositories that share one executor, either the
// pool or a single database transaction.
type Repositories interface {
	Transactions() TransactionRepository
	Notifications() NotificationRepository
}

// UnitOfWork hands out pool-bound repositories and runs fn inside one
// database transaction; fn's error rolls it back.
type UnitOfWork interface {
	Repositories
	WithTransaction(ctx context.Context, fn func(repos Repositories) error) error
}
