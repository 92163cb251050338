package repository

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"admin-payments/internal/domain"
	"admin-payments/internal/errors"
)

// AuditRepository writes to admin_logs.
type AuditRepository struct {
	db     SQLExecutor
	logger *logrus.Logger
}

func NewAuditRepository(db SQLExecutor, logger *logrus.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// LogAction never fails the caller; problems are logged.
func (r *AuditRepository) LogAction(ctx context.Context, actorID int64, action string, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		r.logger.WithFields(logrus.Fields{"actor": actorID, "action": action, "error": err}).Warn("Failed to encode audit details")
		return
	}

	query := `INSERT INTO admin_logs (actor, action, details) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, actorID, action, string(payload)); err != nil {
		r.logger.WithFields(logrus.Fields{"actor": actorID, "action": action, "error": err}).Warn("Failed to write audit entry")
		return
	}

	r.logger.WithFields(logrus.Fields{"actor": actorID, "action": action}).Debug("Audit entry written")
}

// GetActionsByTransaction returns the audit trail of one transaction, oldest first.
func (r *AuditRepository) GetActionsByTransaction(ctx context.Context, transactionID int64) ([]*domain.AuditEntry, error) {
	query := `
		SELECT id, actor, action, details, created_at
		FROM admin_logs
		WHERE (details->>'transaction_id')::BIGINT = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		r.logger.WithFields(logrus.Fields{"transaction_id": transactionID, "error": err}).Error("Failed to query audit entries")
		return nil, errors.NewAppError(errors.InternalError, "failed to list audit entries").WithDetails(err.Error())
	}
	defer rows.Close()

	entries := make([]*domain.AuditEntry, 0)
	for rows.Next() {
		var entry domain.AuditEntry
		var details []byte
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Action, &details, &entry.CreatedAt); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan audit entry").WithDetails(err.Error())
		}
		entry.Details = json.RawMessage(details)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to list audit entries").WithDetails(err.Error())
	}
	return entries, nil
}

var _ domain.AuditLog = (*AuditRepository)(nil)
