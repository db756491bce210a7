package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Workers hold a short lease and extend it while alive, so a crashed
// instance frees the slot after one TTL instead of blocking failover.
const defaultLeaseTTL = 5 * time.Minute

// ErrLeaseLost signals that another instance took the lease over while this
// one was still running.
var ErrLeaseLost = errors.New("worker lease lost")

// Lock coordinates a single active worker instance.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock implements Lock as a Redis SETNX lease with TTL. The holder keeps
// the lease alive through Heartbeat; once the TTL lapses without an extension
// any other instance can acquire it.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock constructs a Redis-backed lease.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to own the lease for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Extend refreshes the lease TTL. Returns false when the lease is no longer
// held by this instance (expired and taken over, or never acquired).
func (l *RedisLock) Extend(ctx context.Context) (bool, error) {
	if l.owner == "" {
		return false, nil
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("read lease owner: %w", err)
	}
	if value != l.owner {
		return false, nil
	}
	if err := l.client.Set(ctx, l.key, l.owner, l.ttl); err != nil {
		return false, fmt.Errorf("extend lease: %w", err)
	}
	return true, nil
}

// Heartbeat extends the lease every third of the TTL until the context ends.
// Returns nil on context cancellation and ErrLeaseLost when another instance
// owns the key; transient store errors are retried on the next beat.
func (l *RedisLock) Heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ok, err := l.Extend(ctx)
			if err != nil {
				continue
			}
			if !ok {
				return ErrLeaseLost
			}
		}
	}
}

// Release frees the lease only if the owner value still matches.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("read lease owner: %w", err)
	}
	if value != l.owner {
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lease: %w", err)
	}
	l.owner = ""
	return nil
}
