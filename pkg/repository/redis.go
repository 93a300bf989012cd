package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/citizenportal/pkg/config"
	"github.com/example/citizenportal/pkg/models"
	"github.com/go-redis/redis/v8"
)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisRepository) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func cartKey(clientID string) string {
	return fmt.Sprintf("cart:%s", clientID)
}

func receiptKey(clientID string) string {
	return fmt.Sprintf("receipt:%s", clientID)
}

func orderKey(orderID string) string {
	return fmt.Sprintf("order:%s", orderID)
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

// LoadCart returns the raw cart of a client, or nil when none is stored.
func (r *RedisRepository) LoadCart(ctx context.Context, clientID string) ([]byte, error) {
	data, err := r.client.Get(ctx, cartKey(clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return data, nil
}

// SaveCart stores the cart without expiry.
func (r *RedisRepository) SaveCart(ctx context.Context, clientID string, data []byte) error {
	return r.client.Set(ctx, cartKey(clientID), data, 0).Err()
}

// CommitCheckout writes the emptied cart and the receipt in one MULTI/EXEC so
// no reader sees one without the other. The receipt expires after ttl.
func (r *RedisRepository) CommitCheckout(ctx context.Context, clientID string, emptyCart []byte, receipt models.Receipt, ttl time.Duration) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, cartKey(clientID), emptyCart, 0)
		pipe.Set(ctx, receiptKey(clientID), data, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit checkout: %w", err)
	}
	return nil
}

// LoadReceipt returns the last receipt of a client, or nil when none is stored.
func (r *RedisRepository) LoadReceipt(ctx context.Context, clientID string) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.GetJSON(ctx, receiptKey(clientID), &receipt)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load receipt: %w", err)
	}
	return &receipt, nil
}

// Cache for order data
type OrderCache struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Status      string  `json:"status"`
	TotalAmount float64 `json:"total_amount"`
}

func (r *RedisRepository) CacheOrder(ctx context.Context, order *OrderCache) error {
	return r.SetJSON(ctx, orderKey(order.ID), order, 30*time.Minute)
}

func (r *RedisRepository) GetOrderCache(ctx context.Context, orderID string) (*OrderCache, error) {
	var order OrderCache
	if err := r.GetJSON(ctx, orderKey(orderID), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *RedisRepository) InvalidateOrder(ctx context.Context, orderID string) error {
	return r.Del(ctx, orderKey(orderID))
}

// ClaimIdempotencyKey binds key to orderID unless it is already bound. It
// returns the order id the key belongs to and whether this call claimed it.
func (r *RedisRepository) ClaimIdempotencyKey(ctx context.Context, key, orderID string, ttl time.Duration) (string, bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKey(key), orderID, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if ok {
		return orderID, true, nil
	}

	existing, err := r.client.Get(ctx, idempotencyKey(key)).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	return existing, false, nil
}

// ReleaseIdempotencyKey drops a claim whose order could not be stored.
func (r *RedisRepository) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return r.Del(ctx, idempotencyKey(key))
}
