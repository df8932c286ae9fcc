package domain

import (
	"context"
	"time"
)

// RateLimiter controls request admission per key (typically client IP).
type RateLimiter interface {
	// Allow reports whether a request under key is within limit requests
	// per window, counting the request if so.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// NonceCache is an advisory fast path for the replay check. Seen may return
// false for a consumed nonce (cache miss, eviction); Mark is called only
// after a successful insert. The database uniqueness constraint remains the
// source of truth.
type NonceCache interface {
	Seen(ctx context.Context, kind IntentKind, principal, nonce string) (bool, error)
	Mark(ctx context.Context, kind IntentKind, principal, nonce string) error
}

// SignalBus carries admission events to in-process and out-of-process
// subscribers (the WebSocket hub, ops tooling).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
