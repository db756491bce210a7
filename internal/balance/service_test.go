package balance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/creatorsats/creatorsats-backend/pkg/db/models"
	"github.com/creatorsats/creatorsats-backend/pkg/logger"
	pkgredis "github.com/creatorsats/creatorsats-backend/pkg/redis"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Transaction{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fakeCache struct {
	values  map[string]string
	gets    int
	sets    int
	failAll bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	c.gets++
	if c.failAll {
		return "", errors.New("cache down")
	}
	v, ok := c.values[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.sets++
	if c.failAll {
		return errors.New("cache down")
	}
	switch v := value.(type) {
	case []byte:
		c.values[key] = string(v)
	case string:
		c.values[key] = v
	default:
		return fmt.Errorf("unexpected value type %T", value)
	}
	return nil
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	if c.failAll {
		return errors.New("cache down")
	}
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

func (c *fakeCache) BalanceKey(creatorID string) string {
	return "cs:balance:" + creatorID
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
}

func seedTransactions(t *testing.T, db *gorm.DB, creatorID uuid.UUID) {
	t.Helper()
	rows := []models.Transaction{
		{TxID: uuid.NewString(), CreatorID: creatorID, AmountSats: 5000, ReceiverAddress: "addr", Confirmed: true},
		{TxID: uuid.NewString(), CreatorID: creatorID, AmountSats: 3000, ReceiverAddress: "addr", Confirmed: true},
		{TxID: uuid.NewString(), CreatorID: creatorID, AmountSats: 2000, ReceiverAddress: "addr", Confirmed: false},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed transaction: %v", err)
		}
	}
}

func TestGetBalanceComputesAndCaches(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	creatorID := uuid.New()
	seedTransactions(t, db, creatorID)

	cache := newFakeCache()
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(db),
		Cache:  cache,
		Logger: testLogger(),
		TTL:    time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}

	bal, err := svc.GetBalance(context.Background(), creatorID)
	if err != nil {
		t.Fatal(err)
	}
	if bal.TotalSats != 10000 {
		t.Errorf("total = %d, want 10000", bal.TotalSats)
	}
	if bal.ConfirmedSats != 8000 {
		t.Errorf("confirmed = %d, want 8000", bal.ConfirmedSats)
	}
	if bal.UnconfirmedSats != 2000 {
		t.Errorf("unconfirmed = %d, want 2000", bal.UnconfirmedSats)
	}
	if cache.sets != 1 {
		t.Errorf("expected one cache write, got %d", cache.sets)
	}

	// Second read must be served from cache without another write.
	if _, err := svc.GetBalance(context.Background(), creatorID); err != nil {
		t.Fatal(err)
	}
	if cache.sets != 1 {
		t.Errorf("expected cached read, got %d writes", cache.sets)
	}
}

func TestGetBalanceUnknownCreatorIsZero(t *testing.T) {
	t.Parallel()

	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(newTestDB(t)),
		Cache:  newFakeCache(),
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	bal, err := svc.GetBalance(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if bal.TotalSats != 0 || bal.UnconfirmedSats != 0 {
		t.Errorf("expected zero balance, got %+v", bal)
	}
}

func TestGetBalanceSurvivesCacheOutage(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	creatorID := uuid.New()
	seedTransactions(t, db, creatorID)

	cache := newFakeCache()
	cache.failAll = true
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(db),
		Cache:  cache,
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	bal, err := svc.GetBalance(context.Background(), creatorID)
	if err != nil {
		t.Fatalf("cache outage must not fail reads: %v", err)
	}
	if bal.TotalSats != 10000 {
		t.Errorf("total = %d, want 10000", bal.TotalSats)
	}
}

func TestInvalidateBalanceForcesRecompute(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	creatorID := uuid.New()
	seedTransactions(t, db, creatorID)

	cache := newFakeCache()
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(db),
		Cache:  cache,
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := svc.GetBalance(ctx, creatorID); err != nil {
		t.Fatal(err)
	}

	extra := models.Transaction{TxID: uuid.NewString(), CreatorID: creatorID, AmountSats: 1000, ReceiverAddress: "addr"}
	if err := db.Create(&extra).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	svc.InvalidateBalance(ctx, creatorID)

	bal, err := svc.GetBalance(ctx, creatorID)
	if err != nil {
		t.Fatal(err)
	}
	if bal.TotalSats != 11000 {
		t.Errorf("total after invalidation = %d, want 11000", bal.TotalSats)
	}
}

func TestRefreshBalanceRepopulatesCache(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	creatorID := uuid.New()
	seedTransactions(t, db, creatorID)

	cache := newFakeCache()
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(db),
		Cache:  cache,
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.RefreshBalance(context.Background(), creatorID); err != nil {
		t.Fatal(err)
	}
	if cache.sets != 1 {
		t.Errorf("expected refresh to write cache, got %d writes", cache.sets)
	}
	if _, ok := cache.values[cache.BalanceKey(creatorID.String())]; !ok {
		t.Error("expected balance key present after refresh")
	}
}
