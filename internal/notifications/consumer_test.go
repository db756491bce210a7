package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/creatorsats/creatorsats-backend/pkg/db/models"
	"github.com/creatorsats/creatorsats-backend/pkg/idempotency"
	"github.com/creatorsats/creatorsats-backend/pkg/logger"
)

type fakeNotificationRepo struct {
	mu      sync.Mutex
	created []*models.Notification
	err     error
}

func (f *fakeNotificationRepo) Create(_ context.Context, notification *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, notification)
	return nil
}

type fakeIdempotencyStore struct {
	mu     sync.Mutex
	keys   map[string]bool
	failed bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{keys: map[string]bool{}}
}

func (f *fakeIdempotencyStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeIdempotencyStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed {
		return false, errors.New("redis unavailable")
	}
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "cs:idempotency:" + scope + ":" + id
}

func (f *fakeIdempotencyStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func newTestConsumer(t *testing.T, repo repository, store *fakeIdempotencyStore) *Consumer {
	t.Helper()
	guard, err := idempotency.NewGuard(store, ConsumerName, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return &Consumer{
		repo:  repo,
		guard: guard,
		logg:  logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard}),
	}
}

func paymentMessage(t *testing.T, eventType string, eventID uuid.UUID, payload paymentEventPayload) *pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(eventEnvelope{
		ID:         eventID.String(),
		Type:       eventType,
		CreatorID:  payload.CreatorID.String(),
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"event_type": eventType},
	}
}

func TestConsumerCreatesConfirmationNotification(t *testing.T) {
	repo := &fakeNotificationRepo{}
	consumer := newTestConsumer(t, repo, newFakeIdempotencyStore())
	creatorID := uuid.New()

	msg := paymentMessage(t, "payment.confirmed", uuid.New(), paymentEventPayload{
		TxID:       "a1b2c3",
		CreatorID:  creatorID,
		AmountSats: 5000,
		Confirmed:  true,
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(repo.created))
	}
	created := repo.created[0]
	if created.CreatorID != creatorID {
		t.Fatalf("unexpected creator id %s", created.CreatorID)
	}
	if created.Title != "Payment received" {
		t.Fatalf("unexpected title %q", created.Title)
	}
	if created.Link == nil || *created.Link != "/payments/a1b2c3" {
		t.Fatalf("unexpected link %v", created.Link)
	}
	if created.Type != "payment.confirmed" {
		t.Fatalf("unexpected type %q", created.Type)
	}
}

func TestConsumerPendingEventUsesPendingCopy(t *testing.T) {
	repo := &fakeNotificationRepo{}
	consumer := newTestConsumer(t, repo, newFakeIdempotencyStore())

	msg := paymentMessage(t, "payment.received", uuid.New(), paymentEventPayload{
		TxID:       "d4e5f6",
		CreatorID:  uuid.New(),
		AmountSats: 750,
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(repo.created))
	}
	if repo.created[0].Title != "Payment pending" {
		t.Fatalf("unexpected title %q", repo.created[0].Title)
	}
}

func TestConsumerDeduplicatesByEventID(t *testing.T) {
	repo := &fakeNotificationRepo{}
	consumer := newTestConsumer(t, repo, newFakeIdempotencyStore())
	eventID := uuid.New()
	payload := paymentEventPayload{TxID: "dup", CreatorID: uuid.New(), AmountSats: 100}

	first := consumer.process(context.Background(), paymentMessage(t, "payment.confirmed", eventID, payload))
	second := consumer.process(context.Background(), paymentMessage(t, "payment.confirmed", eventID, payload))
	if !first.ack || !second.ack {
		t.Fatalf("expected both messages acked, got %+v and %+v", first, second)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification after redelivery, got %d", len(repo.created))
	}
}

func TestConsumerSkipsUnrelatedEvents(t *testing.T) {
	repo := &fakeNotificationRepo{}
	consumer := newTestConsumer(t, repo, newFakeIdempotencyStore())

	msg := &pubsub.Message{
		Data:       []byte(`{}`),
		Attributes: map[string]string{"event_type": "withdrawal.completed"},
	}
	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no notifications, got %d", len(repo.created))
	}
}

func TestConsumerNacksWhenIdempotencyStoreIsDown(t *testing.T) {
	repo := &fakeNotificationRepo{}
	store := newFakeIdempotencyStore()
	store.failed = true
	consumer := newTestConsumer(t, repo, store)

	msg := paymentMessage(t, "payment.confirmed", uuid.New(), paymentEventPayload{
		TxID:      "x",
		CreatorID: uuid.New(),
	})
	result := consumer.process(context.Background(), msg)
	if !result.nack {
		t.Fatalf("expected nack, got %+v", result)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no notifications, got %d", len(repo.created))
	}
}

func TestConsumerReleasesIdempotencyMarkOnFailure(t *testing.T) {
	repo := &fakeNotificationRepo{err: errors.New("insert failed")}
	store := newFakeIdempotencyStore()
	consumer := newTestConsumer(t, repo, store)
	eventID := uuid.New()

	msg := paymentMessage(t, "payment.confirmed", eventID, paymentEventPayload{
		TxID:       "retry-me",
		CreatorID:  uuid.New(),
		AmountSats: 42,
	})
	result := consumer.process(context.Background(), msg)
	if !result.nack {
		t.Fatalf("expected nack, got %+v", result)
	}

	// The processed mark must be gone so the redelivery is not dropped.
	repo.err = nil
	retry := consumer.process(context.Background(), msg)
	if !retry.ack {
		t.Fatalf("expected ack on retry, got %+v", retry)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected notification created on retry, got %d", len(repo.created))
	}
}
