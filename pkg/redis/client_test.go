package redis

import (
	"context"
	"testing"

	"github.com/creatorsats/creatorsats-backend/pkg/config"
)

func TestBuildKeys(t *testing.T) {
	c := &Client{}
	if got := c.BalanceKey("creator-1"); got != "cs:balance:creator-1" {
		t.Fatalf("unexpected balance key %q", got)
	}
	if got := c.LockKey("confirmation-worker"); got != "cs:lock:confirmation-worker" {
		t.Fatalf("unexpected lock key %q", got)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	c := &Client{}
	ctx := context.Background()
	if err := c.Set(ctx, "k", "v", 0); err == nil {
		t.Fatal("expected error for uninitialized Set")
	}
	if _, err := c.Get(ctx, "k"); err == nil {
		t.Fatal("expected error for uninitialized Get")
	}
	if err := c.Del(ctx, "k"); err == nil {
		t.Fatal("expected error for uninitialized Del")
	}
}

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error when neither url nor address is set")
	}

	opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 2, PoolSize: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 2 || opts.PoolSize != 5 {
		t.Fatalf("options not mapped from config: %+v", opts)
	}
}
