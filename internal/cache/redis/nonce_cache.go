package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/predifi/intent-gateway/internal/domain"
)

// nonceTTL bounds how long a consumed nonce stays in the fast path. The
// database constraint still rejects replays after eviction, so the TTL only
// trades memory against database round trips.
const nonceTTL = 24 * time.Hour

// NonceCache implements domain.NonceCache as an advisory consumed-nonce set.
// A miss is never an admission decision on its own.
type NonceCache struct {
	rdb *redis.Client
}

// NewNonceCache creates a NonceCache backed by the given Client.
func NewNonceCache(c *Client) *NonceCache {
	return &NonceCache{rdb: c.Underlying()}
}

func nonceKey(kind domain.IntentKind, principal, nonce string) string {
	return fmt.Sprintf("nonce:%s:%s:%s", kind, principal, nonce)
}

// Seen reports whether the (principal, nonce) pair has been marked consumed.
func (nc *NonceCache) Seen(ctx context.Context, kind domain.IntentKind, principal, nonce string) (bool, error) {
	n, err := nc.rdb.Exists(ctx, nonceKey(kind, principal, nonce)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: nonce seen: %w", err)
	}
	return n > 0, nil
}

// Mark records the (principal, nonce) pair as consumed. Called only after
// the record is durably inserted.
func (nc *NonceCache) Mark(ctx context.Context, kind domain.IntentKind, principal, nonce string) error {
	if err := nc.rdb.SetNX(ctx, nonceKey(kind, principal, nonce), "1", nonceTTL).Err(); err != nil {
		return fmt.Errorf("redis: nonce mark: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.NonceCache = (*NonceCache)(nil)
