package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/creatorsats/creatorsats-backend/pkg/db/types"
)

// Webhook is a subscriber endpoint for a creator's events. Active flips to
// false once ConsecutiveFailures reaches the configured threshold and is
// never reactivated automatically.
type Webhook struct {
	ID                  uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CreatorID           uuid.UUID         `gorm:"column:creator_id;type:uuid;not null;index"`
	URL                 string            `gorm:"column:url;not null"`
	Events              dbtypes.EventList `gorm:"column:events;type:jsonb;not null"`
	Secret              string            `gorm:"column:secret;not null"`
	Active              bool              `gorm:"column:active;not null;default:true"`
	ConsecutiveFailures int               `gorm:"column:consecutive_failures;not null;default:0"`
	LastTriggeredAt     *time.Time        `gorm:"column:last_triggered_at"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *Webhook) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
