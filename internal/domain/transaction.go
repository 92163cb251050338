package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"admin-payments/internal/acquiring"
)

// Transaction is one admin balance top-up attempt.
type Transaction struct {
	ID                int64            `json:"id"`
	AdminID           int64            `json:"admin_id"`
	Amount            decimal.Decimal  `json:"amount"`
	ProviderPaymentID *string          `json:"provider_payment_id,omitempty"`
	PaymentURL        *string          `json:"payment_url,omitempty"`
	Status            acquiring.Status `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// OrderID is the order identifier the gateway knows this transaction by.
func (t *Transaction) OrderID() string {
	return OrderIDPrefix + formatInt(t.ID)
}

// HasProviderPayment reports whether Init succeeded for this transaction.
func (t *Transaction) HasProviderPayment() bool {
	return t.ProviderPaymentID != nil && *t.ProviderPaymentID != ""
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, adminID int64, amount decimal.Decimal) (*Transaction, error)
	UpdateTransactionWithPaymentDetails(ctx context.Context, id int64, providerPaymentID, paymentURL string) (*Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id int64, status acquiring.Status) (*Transaction, error)
	// GetTransactionByID returns nil, nil when no row matches.
	GetTransactionByID(ctx context.Context, id int64) (*Transaction, error)
	// GetAllTransactions lists every transaction, newest first.
	GetAllTransactions(ctx context.Context) ([]*Transaction, error)
	// GetPendingTransactions lists non-terminal transactions that have a provider payment id.
	GetPendingTransactions(ctx context.Context, limit int) ([]*Transaction, error)
}
