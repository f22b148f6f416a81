package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimStore hands out short-lived delivery claims so that two concurrent
// redeliveries of the same webhook cannot both reach the state machine. The
// durable uniqueness lives in the webhook_events table; this is the fast path
// in front of it.
type ClaimStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewClaimStore(rdb *redis.Client, ttl time.Duration) *ClaimStore {
	return &ClaimStore{rdb: rdb, ttl: ttl}
}

func Key(provider, invoiceID, invoiceKey, eventType string) string {
	return fmt.Sprintf("wh:%s:%s:%s:%s", provider, invoiceID, invoiceKey, eventType)
}

// Claim returns true when the caller is the first to see this delivery within
// the TTL window.
func (s *ClaimStore) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Release frees a claim so a failed delivery can be retried by the provider
// without waiting out the TTL.
func (s *ClaimStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
