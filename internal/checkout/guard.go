package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ivanberrios/storefront-backend/pkg/redis"
)

const webhookGuardScope = "square:webhook"

// IdempotencyGuard is the redis fast path for duplicate webhook delivery.
// The webhook_events table remains the durable backstop once the TTL lapses.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewIdempotencyGuard builds the webhook event guard.
func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &IdempotencyGuard{store: store, ttl: ttl}, nil
}

// CheckAndMark returns true when the event was already marked, and
// otherwise marks it for the configured TTL.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(webhookGuardScope, eventID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete releases the mark so a failed delivery can be retried.
func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(webhookGuardScope, eventID)
	return g.store.Del(ctx, key)
}
