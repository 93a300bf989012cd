package repository

import (
	"context"
	"time"

	"github.com/example/citizenportal/pkg/models"
)

// ClientStateStore keeps the storefront state of each client in Redis: the
// durable cart and the session-scoped receipt.
type ClientStateStore struct {
	redis      *RedisRepository
	receiptTTL time.Duration
}

func NewClientStateStore(redis *RedisRepository, receiptTTL time.Duration) *ClientStateStore {
	return &ClientStateStore{redis: redis, receiptTTL: receiptTTL}
}

func (s *ClientStateStore) LoadCart(ctx context.Context, clientID string) ([]byte, error) {
	return s.redis.LoadCart(ctx, clientID)
}

func (s *ClientStateStore) SaveCart(ctx context.Context, clientID string, data []byte) error {
	return s.redis.SaveCart(ctx, clientID, data)
}

func (s *ClientStateStore) CommitCheckout(ctx context.Context, clientID string, emptyCart []byte, receipt models.Receipt) error {
	return s.redis.CommitCheckout(ctx, clientID, emptyCart, receipt, s.receiptTTL)
}

func (s *ClientStateStore) LoadReceipt(ctx context.Context, clientID string) (*models.Receipt, error) {
	return s.redis.LoadReceipt(ctx, clientID)
}
