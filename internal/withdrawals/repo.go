package withdrawals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/creatorsats/creatorsats-backend/pkg/db/models"
	pkgerrors "github.com/creatorsats/creatorsats-backend/pkg/errors"
)

// Repository persists withdrawals and reads the creator profiles needed to
// price them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCreator(ctx context.Context, id uuid.UUID) (*models.Creator, error)
	CreateWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error
	FindWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]models.Withdrawal, error)
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

func (r *gormRepository) FindCreator(ctx context.Context, id uuid.UUID) (*models.Creator, error) {
	var creator models.Creator
	err := r.db.WithContext(ctx).First(&creator, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "creator not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find creator")
	}
	return &creator, nil
}

func (r *gormRepository) CreateWithdrawal(ctx context.Context, withdrawal *models.Withdrawal) error {
	if err := r.db.WithContext(ctx).Create(withdrawal).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create withdrawal")
	}
	return nil
}

func (r *gormRepository) FindWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := r.db.WithContext(ctx).First(&withdrawal, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find withdrawal")
	}
	return &withdrawal, nil
}

func (r *gormRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	query := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&withdrawals).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list withdrawals")
	}
	return withdrawals, nil
}
