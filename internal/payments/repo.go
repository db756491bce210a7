package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/creatorsats/creatorsats-backend/pkg/db"
	"github.com/creatorsats/creatorsats-backend/pkg/db/models"
	pkgerrors "github.com/creatorsats/creatorsats-backend/pkg/errors"
)

// Repository persists payment intents and ledger transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateIntent(ctx context.Context, intent *models.PaymentIntent) error
	FindIntentByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)

	CreateTransaction(ctx context.Context, transaction *models.Transaction) error
	FindTransactionByTxID(ctx context.Context, txid string) (*models.Transaction, error)
	MarkConfirmed(ctx context.Context, txid string, confirmations int, blockHeight *int64, at time.Time) error
	ListUnconfirmed(ctx context.Context, limit int) ([]models.Transaction, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a gorm-backed Repository.
func NewRepository(conn *gorm.DB) Repository {
	return &gormRepository{db: conn}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) CreateIntent(ctx context.Context, intent *models.PaymentIntent) error {
	if err := r.db.WithContext(ctx).Create(intent).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment intent")
	}
	return nil
}

func (r *gormRepository) FindIntentByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).First(&intent, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find payment intent")
	}
	return &intent, nil
}

// CreateTransaction inserts a ledger row. A second insert for the same txid
// surfaces as a conflict, relying on the unique index as the backstop for the
// idempotency guard above it.
func (r *gormRepository) CreateTransaction(ctx context.Context, transaction *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(transaction).Error; err != nil {
		if db.IsUniqueViolation(err, "idx_transactions_txid") {
			return pkgerrors.New(pkgerrors.CodeConflict, "transaction already recorded")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create transaction")
	}
	return nil
}

func (r *gormRepository) FindTransactionByTxID(ctx context.Context, txid string) (*models.Transaction, error) {
	var transaction models.Transaction
	err := r.db.WithContext(ctx).First(&transaction, "txid = ?", txid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find transaction")
	}
	return &transaction, nil
}

// MarkConfirmed flips the confirmed flag. The guard on confirmed = false
// keeps the flag monotonic no matter how often the tracker rechecks.
func (r *gormRepository) MarkConfirmed(ctx context.Context, txid string, confirmations int, blockHeight *int64, at time.Time) error {
	updates := map[string]any{
		"confirmations": confirmations,
		"confirmed":     true,
		"confirmed_at":  at,
	}
	if blockHeight != nil {
		updates["block_height"] = *blockHeight
	}
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("txid = ? AND confirmed = ?", txid, false).
		Updates(updates).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark transaction confirmed")
	}
	return nil
}

func (r *gormRepository) ListUnconfirmed(ctx context.Context, limit int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	query := r.db.WithContext(ctx).
		Where("confirmed = ?", false).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&transactions).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list unconfirmed transactions")
	}
	return transactions, nil
}
