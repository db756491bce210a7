package balance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/creatorsats/creatorsats-backend/pkg/db/models"
	pkgerrors "github.com/creatorsats/creatorsats-backend/pkg/errors"
)

// Balance is the aggregated ledger position for a creator. UnconfirmedSats
// is included in TotalSats; ConfirmedSats is what can actually be withdrawn.
type Balance struct {
	CreatorID       uuid.UUID `json:"creator_id"`
	TotalSats       int64     `json:"total_sats"`
	ConfirmedSats   int64     `json:"confirmed_sats"`
	UnconfirmedSats int64     `json:"unconfirmed_sats"`
	ComputedAt      time.Time `json:"computed_at"`
}

// Repository aggregates transaction rows into balances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ComputeBalance(ctx context.Context, creatorID uuid.UUID) (*Balance, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a gorm-backed Repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) ComputeBalance(ctx context.Context, creatorID uuid.UUID) (*Balance, error) {
	var row struct {
		Total       int64
		Unconfirmed int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount_sats), 0) AS total, COALESCE(SUM(CASE WHEN confirmed THEN 0 ELSE amount_sats END), 0) AS unconfirmed").
		Where("creator_id = ?", creatorID).
		Scan(&row).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute balance")
	}
	return &Balance{
		CreatorID:       creatorID,
		TotalSats:       row.Total,
		ConfirmedSats:   row.Total - row.Unconfirmed,
		UnconfirmedSats: row.Unconfirmed,
		ComputedAt:      time.Now().UTC(),
	}, nil
}
