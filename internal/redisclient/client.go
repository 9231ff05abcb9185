package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CacheIdempotentBooking stores the booking id resolved for an idempotency
// key so retried requests skip the relational lookup.
func (c *Client) CacheIdempotentBooking(ctx context.Context, key string, bookingID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), bookingID, ttl).Err()
}

// LookupIdempotentBooking returns the cached booking id for an idempotency
// key, or 0 when the key is unknown. A cache miss is not authoritative; the
// relational store remains the source of truth.
func (c *Client) LookupIdempotentBooking(ctx context.Context, key string) (int64, error) {
	id, err := c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// StoreOAuthState binds a connect-flow state nonce to the tenant that
// initiated it, for the TTL of the authorization handshake.
func (c *Client) StoreOAuthState(ctx context.Context, state string, tenantID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("oauth:state:%s", state), tenantID, ttl).Err()
}

// ConsumeOAuthState resolves a state nonce to its tenant and invalidates it.
// Returns 0 when the nonce is unknown, expired, or already redeemed.
func (c *Client) ConsumeOAuthState(ctx context.Context, state string) (int64, error) {
	key := fmt.Sprintf("oauth:state:%s", state)
	tenantID, err := c.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return 0, err
	}
	return tenantID, nil
}

// AcquireSyncLock takes a per-booking lock so only one retry worker
// re-attempts a failed calendar sync at a time.
func (c *Client) AcquireSyncLock(ctx context.Context, bookingID int64, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:sync:%d", bookingID), "1", ttl).Result()
}

// ReleaseSyncLock releases a per-booking sync lock
func (c *Client) ReleaseSyncLock(ctx context.Context, bookingID int64) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:sync:%d", bookingID)).Err()
}
