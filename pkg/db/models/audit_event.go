package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditEvent is an append-only record of a settlement action.
type AuditEvent struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CreatorID  uuid.UUID       `gorm:"column:creator_id;type:uuid;not null;index"`
	Action     string          `gorm:"column:action;not null"`
	EntityType string          `gorm:"column:entity_type;not null"`
	EntityID   string          `gorm:"column:entity_id;not null"`
	Metadata   json.RawMessage `gorm:"column:metadata"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (a *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
