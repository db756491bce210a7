package webhooks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/creatorsats/creatorsats-backend/pkg/db/models"
	"github.com/creatorsats/creatorsats-backend/pkg/enums"
	pkgerrors "github.com/creatorsats/creatorsats-backend/pkg/errors"
)

// Repository persists webhook subscriptions and their delivery state.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, webhook *models.Webhook) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Webhook, error)
	ListActiveByEvent(ctx context.Context, creatorID uuid.UUID, event enums.WebhookEvent) ([]models.Webhook, error)
	Delete(ctx context.Context, id uuid.UUID) error
	RecordSuccess(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordFailure(ctx context.Context, id uuid.UUID) (int, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
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

func (r *gormRepository) Create(ctx context.Context, webhook *models.Webhook) error {
	if err := r.db.WithContext(ctx).Create(webhook).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create webhook")
	}
	return nil
}

func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	var webhook models.Webhook
	err := r.db.WithContext(ctx).First(&webhook, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "webhook not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find webhook")
	}
	return &webhook, nil
}

func (r *gormRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Webhook, error) {
	var webhooks []models.Webhook
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at ASC").
		Find(&webhooks).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list webhooks")
	}
	return webhooks, nil
}

// ListActiveByEvent filters on the events column in Go rather than SQL so the
// same query works on both the jsonb and sqlite text representations.
func (r *gormRepository) ListActiveByEvent(ctx context.Context, creatorID uuid.UUID, event enums.WebhookEvent) ([]models.Webhook, error) {
	var webhooks []models.Webhook
	err := r.db.WithContext(ctx).
		Where("creator_id = ? AND active = ?", creatorID, true).
		Find(&webhooks).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list active webhooks")
	}
	matched := webhooks[:0]
	for _, w := range webhooks {
		if w.Events.Contains(event) {
			matched = append(matched, w)
		}
	}
	return matched, nil
}

func (r *gormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Webhook{}, "id = ?", id)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "delete webhook")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "webhook not found")
	}
	return nil
}

func (r *gormRepository) RecordSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.Webhook{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"consecutive_failures": 0,
			"last_triggered_at":    at,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record webhook success")
	}
	return nil
}

// RecordFailure bumps the failure counter and returns the new count.
func (r *gormRepository) RecordFailure(ctx context.Context, id uuid.UUID) (int, error) {
	err := r.db.WithContext(ctx).
		Model(&models.Webhook{}).
		Where("id = ?", id).
		UpdateColumn("consecutive_failures", gorm.Expr("consecutive_failures + 1")).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record webhook failure")
	}
	var webhook models.Webhook
	if err := r.db.WithContext(ctx).Select("consecutive_failures").First(&webhook, "id = ?", id).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload webhook failure count")
	}
	return webhook.ConsecutiveFailures, nil
}

func (r *gormRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&models.Webhook{}).
		Where("id = ?", id).
		Update("active", false).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate webhook")
	}
	return nil
}
