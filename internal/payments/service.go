package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/creatorsats/creatorsats-backend/internal/audit"
	"github.com/creatorsats/creatorsats-backend/internal/blockchain"
	"github.com/creatorsats/creatorsats-backend/internal/micropay"
	"github.com/creatorsats/creatorsats-backend/internal/notifications"
	"github.com/creatorsats/creatorsats-backend/pkg/config"
	"github.com/creatorsats/creatorsats-backend/pkg/db/models"
	"github.com/creatorsats/creatorsats-backend/pkg/enums"
	pkgerrors "github.com/creatorsats/creatorsats-backend/pkg/errors"
	"github.com/creatorsats/creatorsats-backend/pkg/logger"
	"github.com/creatorsats/creatorsats-backend/pkg/metrics"
	"github.com/creatorsats/creatorsats-backend/pkg/validate"
)

const (
	outcomeConfirmed = "confirmed"
	outcomePending   = "pending"
	outcomeRejected  = "rejected"
)

// BalanceInvalidator is the slice of the balance service the payment flow
// needs: drop the cached balance after a ledger mutation.
type BalanceInvalidator interface {
	InvalidateBalance(ctx context.Context, creatorID uuid.UUID)
}

// WebhookTrigger fans payment events out to a creator's subscribers.
type WebhookTrigger interface {
	TriggerPaymentWebhooks(ctx context.Context, creatorID uuid.UUID, event enums.WebhookEvent, data any)
}

// ServiceParams wires the payment service.
type ServiceParams struct {
	Repo     Repository
	Gateway  blockchain.Gateway
	Policy   *micropay.Policy
	Balance  BalanceInvalidator
	Fanout   notifications.Fanout
	Webhooks WebhookTrigger
	Audit    audit.Recorder
	Tracker  *Tracker
	Logger   *logger.Logger
	Metrics  *metrics.PaymentMetrics
	Config   config.PaymentsConfig
	BaseURL  string
}

// Service orchestrates intent creation, payment verification, ledger
// persistence, cache invalidation, and event fan-out.
type Service struct {
	repo             Repository
	gateway          blockchain.Gateway
	policy           *micropay.Policy
	balance          BalanceInvalidator
	fanout           notifications.Fanout
	webhooks         WebhookTrigger
	audit            audit.Recorder
	tracker          *Tracker
	logg             *logger.Logger
	metrics          *metrics.PaymentMetrics
	minConfirmations int
	baseURL          string
}

// NewService validates params and builds a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("payments: repo is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("payments: gateway is required")
	}
	if params.Policy == nil {
		return nil, errors.New("payments: micropayment policy is required")
	}
	if params.Balance == nil {
		return nil, errors.New("payments: balance invalidator is required")
	}
	if params.Fanout == nil {
		return nil, errors.New("payments: notification fanout is required")
	}
	if params.Webhooks == nil {
		return nil, errors.New("payments: webhook trigger is required")
	}
	if params.Audit == nil {
		return nil, errors.New("payments: audit recorder is required")
	}
	if params.Logger == nil {
		return nil, errors.New("payments: logger is required")
	}
	minConfirmations := params.Config.MinConfirmations
	if minConfirmations <= 0 {
		minConfirmations = 1
	}
	return &Service{
		repo:             params.Repo,
		gateway:          params.Gateway,
		policy:           params.Policy,
		balance:          params.Balance,
		fanout:           params.Fanout,
		webhooks:         params.Webhooks,
		audit:            params.Audit,
		tracker:          params.Tracker,
		logg:             params.Logger,
		metrics:          params.Metrics,
		minConfirmations: minConfirmations,
		baseURL:          params.BaseURL,
	}, nil
}

// CreateIntentInput is the input to CreateIntent.
type CreateIntentInput struct {
	CreatorID      uuid.UUID        `json:"creator_id" validate:"required"`
	Kind           enums.IntentKind `json:"kind" validate:"required"`
	AmountSats     *int64           `json:"amount_sats,omitempty"`
	Title          string           `json:"title" validate:"required,max=200"`
	Description    *string          `json:"description,omitempty"`
	Recurring      bool             `json:"recurring"`
	RecurrenceDays *int             `json:"recurrence_days,omitempty"`
	ExpiresInHours *int             `json:"expires_in_hours,omitempty"`
}

// CreateIntent persists a payment intent and returns it with a shareable
// payment URL. Amount, when present, must clear the dust floor.
func (s *Service) CreateIntent(ctx context.Context, input CreateIntentInput) (*models.PaymentIntent, string, error) {
	if err := validate.Struct(input); err != nil {
		return nil, "", err
	}
	if !input.Kind.IsValid() {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown intent kind %q", input.Kind))
	}
	if input.AmountSats != nil {
		if err := s.policy.ValidateAmount(*input.AmountSats); err != nil {
			return nil, "", err
		}
	}
	if input.Recurring && (input.RecurrenceDays == nil || *input.RecurrenceDays <= 0) {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "recurring intents need a positive recurrence interval")
	}

	var expiresAt *time.Time
	if input.ExpiresInHours != nil {
		if *input.ExpiresInHours <= 0 {
			return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "expiry offset must be positive")
		}
		at := time.Now().UTC().Add(time.Duration(*input.ExpiresInHours) * time.Hour)
		expiresAt = &at
	}

	intent := &models.PaymentIntent{
		CreatorID:      input.CreatorID,
		Kind:           input.Kind,
		AmountSats:     input.AmountSats,
		Title:          input.Title,
		Description:    input.Description,
		Recurring:      input.Recurring,
		RecurrenceDays: input.RecurrenceDays,
		ExpiresAt:      expiresAt,
		Status:         enums.IntentStatusActive,
	}
	if err := s.repo.CreateIntent(ctx, intent); err != nil {
		return nil, "", err
	}
	return intent, fmt.Sprintf("%s/pay/%s", s.baseURL, intent.ID), nil
}

// GetIntent is the public read path. Expiry is resolved at read time; there
// is no background sweeper.
func (s *Service) GetIntent(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	intent, err := s.repo.FindIntentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	intent.Status = intent.EffectiveStatus(time.Now().UTC())
	return intent, nil
}

// ProcessPaymentInput is the input to ProcessPayment.
type ProcessPaymentInput struct {
	TxID            string         `json:"txid" validate:"required"`
	IntentID        *uuid.UUID     `json:"intent_id,omitempty"`
	CreatorID       uuid.UUID      `json:"creator_id" validate:"required"`
	AmountSats      int64          `json:"amount_sats" validate:"required,gt=0"`
	SenderAddress   string         `json:"sender_address,omitempty"`
	ReceiverAddress string         `json:"receiver_address" validate:"required"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// ProcessPayment ingests a reported payment. The duplicate-txid guard runs
// before anything else; the dust check runs before any gateway call. Side
// effects after persistence (cache invalidation, fan-out, tracking) are best
// effort and never roll the ledger row back.
func (s *Service) ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*models.Transaction, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	ctx = s.logg.WithTxID(s.logg.WithCreatorID(ctx, input.CreatorID.String()), input.TxID)

	if _, err := s.repo.FindTransactionByTxID(ctx, input.TxID); err == nil {
		s.metrics.IncProcessed(outcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "transaction already recorded")
	} else if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	if input.IntentID != nil {
		intent, err := s.repo.FindIntentByID(ctx, *input.IntentID)
		if err != nil {
			return nil, err
		}
		if intent.CreatorID != input.CreatorID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment intent belongs to another creator")
		}
	}

	if err := s.policy.ValidateAmount(input.AmountSats); err != nil {
		s.metrics.IncProcessed(outcomeRejected)
		return nil, err
	}

	verification, err := s.VerifyTransaction(ctx, input.TxID, VerifyParams{
		ExpectedAmountSats: input.AmountSats,
		ExpectedReceiver:   input.ReceiverAddress,
		ExpectedSender:     input.SenderAddress,
	})
	if err != nil {
		return nil, err
	}
	if !verification.Valid {
		s.metrics.IncProcessed(outcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment verification failed").
			WithDetails(map[string]string{"reason": verification.Error})
	}

	transaction := &models.Transaction{
		TxID:            input.TxID,
		CreatorID:       input.CreatorID,
		IntentID:        input.IntentID,
		AmountSats:      input.AmountSats,
		SenderAddress:   input.SenderAddress,
		ReceiverAddress: input.ReceiverAddress,
		Confirmations:   verification.Confirmations,
		Confirmed:       verification.IsConfirmed,
		BlockHeight:     verification.BlockHeight,
	}
	if verification.IsConfirmed {
		now := time.Now().UTC()
		transaction.ConfirmedAt = &now
	}
	if verification.Payload != "" {
		if raw, marshalErr := json.Marshal(map[string]string{"op_return": verification.Payload}); marshalErr == nil {
			transaction.Payload = raw
		}
	}
	if len(input.Metadata) > 0 {
		if raw, marshalErr := json.Marshal(input.Metadata); marshalErr == nil {
			transaction.Metadata = raw
		}
	}
	if err := s.repo.CreateTransaction(ctx, transaction); err != nil {
		return nil, err
	}

	s.balance.InvalidateBalance(ctx, input.CreatorID)

	event := enums.WebhookEventPaymentReceived
	outcome := outcomePending
	if verification.IsConfirmed {
		event = enums.WebhookEventPaymentConfirmed
		outcome = outcomeConfirmed
	}
	s.notify(ctx, transaction, event)
	if !verification.IsConfirmed && s.tracker != nil {
		s.tracker.Register(ctx, input.TxID, input.CreatorID)
	}

	s.audit.Record(ctx, audit.Entry{
		CreatorID:  input.CreatorID,
		Action:     "payment.processed",
		EntityType: "transaction",
		EntityID:   input.TxID,
		Metadata: map[string]any{
			"amount_sats": input.AmountSats,
			"confirmed":   verification.IsConfirmed,
		},
	})
	s.metrics.IncProcessed(outcome)
	return transaction, nil
}

func (s *Service) notify(ctx context.Context, transaction *models.Transaction, event enums.WebhookEvent) {
	data := map[string]any{
		"txid":        transaction.TxID,
		"creator_id":  transaction.CreatorID.String(),
		"amount_sats": transaction.AmountSats,
		"confirmed":   transaction.Confirmed,
	}
	if err := s.fanout.Publish(ctx, notifications.Event{
		Type:      event.String(),
		CreatorID: transaction.CreatorID.String(),
		Payload:   data,
	}); err != nil {
		s.logg.Error(ctx, "publish payment notification", err)
	}
	s.webhooks.TriggerPaymentWebhooks(ctx, transaction.CreatorID, event, data)
}
