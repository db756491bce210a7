package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/creatorsats/creatorsats-backend/pkg/db/models"
	pkgerrors "github.com/creatorsats/creatorsats-backend/pkg/errors"
	"github.com/creatorsats/creatorsats-backend/pkg/logger"
)

// Entry describes a settlement action worth keeping a trace of.
type Entry struct {
	CreatorID  uuid.UUID
	Action     string
	EntityType string
	EntityID   string
	Metadata   any
}

// Recorder appends audit entries. Implementations must be safe to call
// fire-and-forget: recording failures are logged, never propagated into the
// calling flow.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

type gormRecorder struct {
	db   *gorm.DB
	logg *logger.Logger
}

// NewRecorder returns a gorm-backed Recorder.
func NewRecorder(db *gorm.DB, logg *logger.Logger) Recorder {
	return &gormRecorder{db: db, logg: logg}
}

func (r *gormRecorder) Record(ctx context.Context, entry Entry) {
	var metadata json.RawMessage
	if entry.Metadata != nil {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			r.logg.Error(ctx, "marshal audit metadata", err)
		} else {
			metadata = raw
		}
	}

	event := models.AuditEvent{
		CreatorID:  entry.CreatorID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   metadata,
	}
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		r.logg.Error(ctx, "append audit event", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create audit event"))
	}
}

// NopRecorder discards entries. Used in tests.
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, entry Entry) {}
