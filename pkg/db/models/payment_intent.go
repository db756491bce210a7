package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/creatorsats/creatorsats-backend/pkg/enums"
)

// PaymentIntent is a creator's declared expectation of a future payment.
// Amount is optional for open-amount tips. Descriptive fields stay mutable
// after fulfillment; everything else is settled once Status is fulfilled.
type PaymentIntent struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	CreatorID      uuid.UUID          `gorm:"column:creator_id;type:uuid;not null;index"`
	Kind           enums.IntentKind   `gorm:"column:kind;not null"`
	AmountSats     *int64             `gorm:"column:amount_sats"`
	Title          string             `gorm:"column:title;not null"`
	Description    *string            `gorm:"column:description"`
	Recurring      bool               `gorm:"column:recurring;not null;default:false"`
	RecurrenceDays *int               `gorm:"column:recurrence_days"`
	ExpiresAt      *time.Time         `gorm:"column:expires_at"`
	Status         enums.IntentStatus `gorm:"column:status;not null;default:'active'"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PaymentIntent) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// EffectiveStatus resolves passive expiry at read time.
func (p *PaymentIntent) EffectiveStatus(now time.Time) enums.IntentStatus {
	if p.Status == enums.IntentStatusActive && p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
		return enums.IntentStatusExpired
	}
	return p.Status
}
