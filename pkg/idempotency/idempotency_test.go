package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	keys        map[string]bool
	setNXError  error
	lastTTL     time.Duration
	lastDeleted string
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: map[string]bool{}}
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if f.setNXError != nil {
		return false, f.setNXError
	}
	f.lastTTL = ttl
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "cs:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
		f.lastDeleted = key
	}
	return nil
}

func TestMarkProcessedFirstTime(t *testing.T) {
	store := newFakeStore()
	guard, err := NewGuard(store, "notifications-worker", 24*time.Hour)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	eventID := uuid.New()
	already, err := guard.MarkProcessed(context.Background(), eventID)
	if err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if already {
		t.Fatalf("expected first call to return false, got true")
	}

	expectedKey := "cs:idempotency:evt:processed:notifications-worker:" + eventID.String()
	if !store.keys[expectedKey] {
		t.Fatalf("expected mark under %q", expectedKey)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}
}

func TestMarkProcessedDeduplicates(t *testing.T) {
	guard, err := NewGuard(newFakeStore(), "notifications-worker", 12*time.Hour)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	eventID := uuid.New()
	if _, err := guard.MarkProcessed(context.Background(), eventID); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	already, err := guard.MarkProcessed(context.Background(), eventID)
	if err != nil {
		t.Fatalf("MarkProcessed repeat: %v", err)
	}
	if !already {
		t.Fatalf("expected already processed, got false")
	}
}

func TestMarkProcessedStoreError(t *testing.T) {
	store := newFakeStore()
	store.setNXError = errors.New("boom")
	guard, err := NewGuard(store, "notifications-worker", time.Hour)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	_, err = guard.MarkProcessed(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestReleaseAllowsReprocessing(t *testing.T) {
	store := newFakeStore()
	guard, err := NewGuard(store, "notifications-worker", time.Hour)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	eventID := uuid.New()
	if _, err := guard.MarkProcessed(context.Background(), eventID); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if err := guard.Release(context.Background(), eventID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	expected := "cs:idempotency:evt:processed:notifications-worker:" + eventID.String()
	if store.lastDeleted != expected {
		t.Fatalf("unexpected deleted key %q", store.lastDeleted)
	}

	already, err := guard.MarkProcessed(context.Background(), eventID)
	if err != nil {
		t.Fatalf("MarkProcessed after release: %v", err)
	}
	if already {
		t.Fatal("expected event to be processable again after release")
	}
}

func TestNewGuardValidation(t *testing.T) {
	if _, err := NewGuard(nil, "c", time.Hour); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewGuard(newFakeStore(), "", time.Hour); err == nil {
		t.Fatal("expected error for empty consumer")
	}
	if _, err := NewGuard(newFakeStore(), "c", -time.Hour); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}
