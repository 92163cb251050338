package repository

import (
	"context"

	"github.com/sirupsen/logrus"

	"admin-payments/internal/domain"
	"admin-payments/internal/errors"
)

// Store hands out repositories bound to one executor and runs units of work.
type Store struct {
	db       DB
	executor SQLExecutor
	logger   *logrus.Logger
}

// NewStore creates a new Store instance
func NewStore(db DB, logger *logrus.Logger) *Store {
	return &Store{
		db:       db,
		executor: db,
		logger:   logger,
	}
}

func (s *Store) Transactions() domain.TransactionRepository {
	return NewTransactionRepository(s.executor, s.logger)
}

func (s *Store) Notifications() domain.NotificationRepository {
	return NewNotificationRepository(s.executor, s.logger)
}

// Audit always writes through the pool so an audit row survives a rollback
// of the surrounding unit of work.
func (s *Store) Audit() *AuditRepository {
	return NewAuditRepository(s.db, s.logger)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTransaction executes fn within a database transaction
func (s *Store) WithTransaction(ctx context.Context, fn func(repos domain.Repositories) error) error {
	if s.executor != SQLExecutor(s.db) {
		return errors.NewAppError(errors.InternalError, "nested transactions are not supported")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.WithError(err).Error("Failed to begin transaction")
		return errors.NewAppError(errors.InternalError, "failed to begin transaction").WithDetails(err.Error())
	}

	txStore := &Store{
		db:       s.db,
		executor: tx,
		logger:   s.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WithError(rbErr).Error("Failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewAppError(errors.InternalError, "failed to commit transaction").WithDetails(err.Error())
	}
	return nil
}

var _ domain.UnitOfWork = (*Store)(nil)
