package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"admin-payments/internal/domain"
)

// Both keys share a hash tag so the versioned write works on a cluster.
const (
	namespace       = "admin_payments"
	transactionsKey = namespace + ":{transactions}:all"
	versionKey      = namespace + ":{transactions}:version"
)

var errStaleVersion = errors.New("transaction list changed since it was read")

// TransactionCache keeps the serialized transaction list in Redis. Every
// write path invalidates it; reads fall back to the database on a miss. A
// version counter bumped by Invalidate keeps a list read before a write from
// being cached after it.
type TransactionCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *logrus.Logger
}

func New(client redis.UniversalClient, ttl time.Duration, logger *logrus.Logger) *TransactionCache {
	return &TransactionCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// NewClient builds a single-node client. The caller owns Close.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// GetTransactions reports false on a miss.
func (c *TransactionCache) GetTransactions(ctx context.Context) ([]*domain.Transaction, bool, error) {
	val, err := c.client.Get(ctx, transactionsKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}

	var transactions []*domain.Transaction
	if err := json.Unmarshal(val, &transactions); err != nil {
		// A payload we cannot read is as good as a miss.
		c.logger.WithError(err).Warn("Dropping unreadable transaction cache entry")
		_ = c.client.Del(ctx, transactionsKey).Err()
		return nil, false, nil
	}
	return transactions, true, nil
}

// Version returns the current list version, zero before the first Invalidate.
func (c *TransactionCache) Version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, versionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

// SetTransactions caches a list that was read at version. The write is
// dropped when an Invalidate happened in between.
func (c *TransactionCache) SetTransactions(ctx context.Context, version int64, transactions []*domain.Transaction) error {
	b, err := json.Marshal(transactions)
	if err != nil {
		return err
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != version {
			return errStaleVersion
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, transactionsKey, b, c.ttl)
			return nil
		})
		return err
	}, versionKey)

	if errors.Is(err, errStaleVersion) || errors.Is(err, redis.TxFailedErr) {
		c.logger.WithField("version", version).Debug("Transaction list changed while loading, not cached")
		return nil
	}
	return err
}

// Invalidate drops the cached list and bumps the version in one transaction.
func (c *TransactionCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Del(ctx, transactionsKey)
		return nil
	})
	return err
}

// Ping checks Redis connectivity.
func (c *TransactionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
