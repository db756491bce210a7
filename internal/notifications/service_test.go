package notifications

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/creatorsats/creatorsats-backend/pkg/db/models"
	pkgerrors "github.com/creatorsats/creatorsats-backend/pkg/errors"
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
	if err := db.AutoMigrate(&models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedNotification(t *testing.T, db *gorm.DB, creatorID uuid.UUID, createdAt time.Time) *models.Notification {
	t.Helper()
	notification := &models.Notification{
		CreatorID: creatorID,
		Type:      "payment.confirmed",
		Title:     "Payment received",
		Message:   "A payment of 5000 sats has been confirmed.",
	}
	if err := db.Create(notification).Error; err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	if !createdAt.IsZero() {
		if err := db.Model(notification).UpdateColumn("created_at", createdAt).Error; err != nil {
			t.Fatalf("backdate notification: %v", err)
		}
		notification.CreatedAt = createdAt
	}
	return notification
}

func TestListPaginatesWithCursor(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatal(err)
	}
	creatorID := uuid.New()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		seedNotification(t, db, creatorID, base.Add(time.Duration(i)*time.Minute))
	}

	first, err := svc.List(context.Background(), ListParams{CreatorID: creatorID, Limit: 3})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(first.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(first.Items))
	}
	if first.Cursor == "" {
		t.Fatal("expected next-page cursor")
	}

	second, err := svc.List(context.Background(), ListParams{CreatorID: creatorID, Limit: 3, Cursor: first.Cursor})
	if err != nil {
		t.Fatalf("List second page: %v", err)
	}
	if len(second.Items) != 2 {
		t.Fatalf("expected 2 items on second page, got %d", len(second.Items))
	}
	if second.Cursor != "" {
		t.Fatalf("expected empty cursor on last page, got %q", second.Cursor)
	}

	// Newest first, no overlap across pages.
	seen := map[uuid.UUID]bool{}
	var previous time.Time
	for i, item := range append(first.Items, second.Items...) {
		if seen[item.ID] {
			t.Fatalf("notification %s returned twice", item.ID)
		}
		seen[item.ID] = true
		if i > 0 && item.CreatedAt.After(previous) {
			t.Fatal("expected newest-first ordering")
		}
		previous = item.CreatedAt
	}
}

func TestListScopedToCreator(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatal(err)
	}
	mine := uuid.New()
	seedNotification(t, db, mine, time.Time{})
	seedNotification(t, db, uuid.New(), time.Time{})

	result, err := svc.List(context.Background(), ListParams{CreatorID: mine})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	if result.Items[0].CreatorID != mine {
		t.Fatal("returned another creator's notification")
	}
}

func TestListUnreadOnly(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatal(err)
	}
	creatorID := uuid.New()
	read := seedNotification(t, db, creatorID, time.Time{})
	seedNotification(t, db, creatorID, time.Time{})

	if err := svc.MarkRead(context.Background(), creatorID, read.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	result, err := svc.List(context.Background(), ListParams{CreatorID: creatorID, UnreadOnly: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 unread item, got %d", len(result.Items))
	}
	if result.Items[0].ID == read.ID {
		t.Fatal("read notification returned in unread-only list")
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatal(err)
	}
	creatorID := uuid.New()
	notification := seedNotification(t, db, creatorID, time.Time{})

	if err := svc.MarkRead(context.Background(), creatorID, notification.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	// Second call finds an already-read row and still succeeds.
	if err := svc.MarkRead(context.Background(), creatorID, notification.ID); err != nil {
		t.Fatalf("MarkRead repeat: %v", err)
	}

	var row models.Notification
	if err := db.First(&row, "id = ?", notification.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if row.ReadAt == nil {
		t.Fatal("expected read_at to be set")
	}
}

func TestMarkReadRejectsOtherCreators(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatal(err)
	}
	notification := seedNotification(t, db, uuid.New(), time.Time{})

	err = svc.MarkRead(context.Background(), uuid.New(), notification.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkAllRead(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatal(err)
	}
	creatorID := uuid.New()
	seedNotification(t, db, creatorID, time.Time{})
	seedNotification(t, db, creatorID, time.Time{})
	seedNotification(t, db, uuid.New(), time.Time{})

	count, err := svc.MarkAllRead(context.Background(), creatorID)
	if err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows updated, got %d", count)
	}

	var unread int64
	if err := db.Model(&models.Notification{}).
		Where("creator_id = ? AND read_at IS NULL", creatorID).
		Count(&unread).Error; err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if unread != 0 {
		t.Fatalf("expected no unread rows, got %d", unread)
	}
}
