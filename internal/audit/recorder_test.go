package audit

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/creatorsats/creatorsats-backend/pkg/db/models"
	"github.com/creatorsats/creatorsats-backend/pkg/logger"
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
	if err := db.AutoMigrate(&models.AuditEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestRecordAppendsEvent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	rec := NewRecorder(db, logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard}))

	creatorID := uuid.New()
	rec.Record(context.Background(), Entry{
		CreatorID:  creatorID,
		Action:     "payment.processed",
		EntityType: "transaction",
		EntityID:   "txid-1",
		Metadata:   map[string]any{"amount_sats": 1000},
	})

	var events []models.AuditEvent
	if err := db.Find(&events).Error; err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	got := events[0]
	if got.CreatorID != creatorID || got.Action != "payment.processed" || got.EntityID != "txid-1" {
		t.Errorf("unexpected event %+v", got)
	}
	if len(got.Metadata) == 0 {
		t.Error("expected metadata to be recorded")
	}
}

func TestRecordSwallowsFailures(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.Close()

	rec := NewRecorder(db, logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard}))
	// Must not panic even though the database is gone.
	rec.Record(context.Background(), Entry{CreatorID: uuid.New(), Action: "noop", EntityType: "none", EntityID: "x"})
}
