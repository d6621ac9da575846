package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RegionalTier adapts the Redis client to the regional cache tier
// contract used by the multi-tier identity cache.
type RegionalTier struct {
	client *Client
}

// NewRegionalTier wraps an existing client.
func NewRegionalTier(client *Client) *RegionalTier {
	return &RegionalTier{client: client}
}

// Get returns the value and whether the key exists.
func (t *RegionalTier) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := t.client.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Put stores the value with the given TTL.
func (t *RegionalTier) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return t.client.Set(ctx, key, value, ttl)
}

// Delete removes the key.
func (t *RegionalTier) Delete(ctx context.Context, key string) error {
	return t.client.Del(ctx, key)
}

// List returns all keys under the prefix.
func (t *RegionalTier) List(ctx context.Context, prefix string) ([]string, error) {
	return t.client.Keys(ctx, prefix+"*")
}
