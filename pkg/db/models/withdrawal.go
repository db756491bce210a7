package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/creatorsats/creatorsats-backend/pkg/enums"
)

// Withdrawal is a creator-initiated payout request. This core computes and
// persists the initial record; status transitions past pending belong to the
// broadcasting worker.
type Withdrawal struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	CreatorID          uuid.UUID              `gorm:"column:creator_id;type:uuid;not null;index"`
	TotalSats          int64                  `gorm:"column:total_sats;not null"`
	PayoutSats         int64                  `gorm:"column:payout_sats;not null"`
	ServiceFeeSats     int64                  `gorm:"column:service_fee_sats;not null"`
	NetworkFeeSats     int64                  `gorm:"column:network_fee_sats;not null"`
	DestinationAddress string                 `gorm:"column:destination_address;not null"`
	Status             enums.WithdrawalStatus `gorm:"column:status;not null;default:'pending'"`
	Metadata           json.RawMessage        `gorm:"column:metadata"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *Withdrawal) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
