package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Audit action names.
const (
	ActionCreatePayment  = "create_payment"
	ActionConfirmPayment = "confirm_payment"
	ActionCancelPayment  = "cancel_payment"
)

type AuditEntry struct {
	ID        int64           `json:"id"`
	Actor     int64           `json:"actor"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditLogger records admin actions. It is best effort: implementations log
// their own failures and never return them.
type AuditLogger interface {
	LogAction(ctx context.Context, actorID int64, action string, details map[string]interface{})
}

// AuditTrail reads recorded actions back, oldest first.
type AuditTrail interface {
	GetActionsByTransaction(ctx context.Context, transactionID int64) ([]*AuditEntry, error)
}

type AuditLog interface {
	AuditLogger
	AuditTrail
}
