package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const idemNS = ns + ":idem"

// A key holds either the lock marker while the first submission is in
// flight, or the stored response prefixed with resultPrefix afterwards.
const (
	lockMarker   = "LOCK"
	resultPrefix = "RES:"
)

func KeyIdemBooking(eventID int64, idemKey string) string {
	return fmt.Sprintf("%s:bookings:%d:%s", idemNS, eventID, idemKey)
}

// IdempotencyStore keeps the first response produced for an Idempotency-Key
// so a retried booking submission cannot allocate seats twice.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// AcquireLock claims the key for the first submission. A false return means
// another request with the same key is in flight or already finished.
func (s *IdempotencyStore) AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, lockMarker, lockTTL).Result()
}

// SaveResult replaces the lock with the response payload to replay on
// retries.
func (s *IdempotencyStore) SaveResult(ctx context.Context, key string, jsonPayload string) error {
	return s.rdb.Set(ctx, key, resultPrefix+jsonPayload, s.ttl).Err()
}

// GetResult returns the stored response, if the first submission has
// finished. A key still in the lock state reports not-found.
func (s *IdempotencyStore) GetResult(ctx context.Context, key string) (string, bool, error) {
	v, err := s.get(ctx, key)
	if err != nil || v == "" {
		return "", false, err
	}
	if payload, ok := strings.CutPrefix(v, resultPrefix); ok {
		return payload, true, nil
	}
	return "", false, nil
}

// IsLocked reports whether a first submission is still in flight.
func (s *IdempotencyStore) IsLocked(ctx context.Context, key string) (bool, error) {
	v, err := s.get(ctx, key)
	if err != nil {
		return false, err
	}
	return v == lockMarker, nil
}

// Release frees the key after a failed submission so the client can retry
// with the same Idempotency-Key.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *IdempotencyStore) get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}
