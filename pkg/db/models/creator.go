package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/creatorsats/creatorsats-backend/pkg/enums"
)

// Creator holds the settlement-relevant profile of a platform creator.
type Creator struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Handle         string                 `gorm:"column:handle;not null;unique"`
	DisplayName    string                 `gorm:"column:display_name;not null"`
	PayoutAddress  string                 `gorm:"column:payout_address;not null"`
	Tier           enums.SubscriptionTier `gorm:"column:tier;not null;default:'free'"`
	FeeOptIn       bool                   `gorm:"column:fee_opt_in;not null;default:false"`
	FeeBasisPoints int                    `gorm:"column:fee_basis_points;not null;default:100"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Creator) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
