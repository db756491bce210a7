package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/creatorsats/creatorsats-backend/pkg/redis"
)

// Guard deduplicates event deliveries for a single named consumer. Processed
// event IDs are marked in Redis via SETNX under the
// `cs:idempotency:evt:processed:<consumer>:<event_id>` key with a TTL, so the
// dedup window is bounded and a crashed consumer cannot poison the topic
// forever.
type Guard struct {
	store    redis.IdempotencyStore
	consumer string
	ttl      time.Duration
}

// NewGuard builds a processed-event guard for the given consumer name.
func NewGuard(store redis.IdempotencyStore, consumer string, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if consumer == "" {
		return nil, errors.New("consumer name is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{
		store:    store,
		consumer: consumer,
		ttl:      ttl,
	}, nil
}

// MarkProcessed returns true if the event has already been processed and
// otherwise marks it as processed with the configured TTL.
func (g *Guard) MarkProcessed(ctx context.Context, eventID uuid.UUID) (bool, error) {
	key, err := g.processedKey(eventID)
	if err != nil {
		return false, err
	}
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Release drops the processed mark so a redelivery is handled again. Called
// when processing fails after the mark was taken.
func (g *Guard) Release(ctx context.Context, eventID uuid.UUID) error {
	key, err := g.processedKey(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) processedKey(eventID uuid.UUID) (string, error) {
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	scope := fmt.Sprintf("evt:processed:%s", g.consumer)
	return g.store.IdempotencyKey(scope, eventID.String()), nil
}
