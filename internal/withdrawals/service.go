package withdrawals

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/creatorsats/creatorsats-backend/internal/audit"
	"github.com/creatorsats/creatorsats-backend/pkg/config"
	"github.com/creatorsats/creatorsats-backend/pkg/db/models"
	"github.com/creatorsats/creatorsats-backend/pkg/enums"
	pkgerrors "github.com/creatorsats/creatorsats-backend/pkg/errors"
	"github.com/creatorsats/creatorsats-backend/pkg/logger"
	"github.com/creatorsats/creatorsats-backend/pkg/metrics"
	"github.com/creatorsats/creatorsats-backend/pkg/validate"
)

// ServiceParams wires the withdrawal service.
type ServiceParams struct {
	Repo    Repository
	Audit   audit.Recorder
	Logger  *logger.Logger
	Metrics *metrics.WithdrawalMetrics
	Config  config.WithdrawalsConfig
}

// Service prices and records creator payouts. Status transitions past
// pending belong to the broadcasting worker, not this service.
type Service struct {
	repo           Repository
	audit          audit.Recorder
	logg           *logger.Logger
	metrics        *metrics.WithdrawalMetrics
	networkFeeSats int64
}

// NewService validates params and builds a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("withdrawals: repo is required")
	}
	if params.Audit == nil {
		return nil, errors.New("withdrawals: audit recorder is required")
	}
	if params.Logger == nil {
		return nil, errors.New("withdrawals: logger is required")
	}
	networkFee := params.Config.NetworkFeeSats
	if networkFee <= 0 {
		networkFee = 250
	}
	return &Service{
		repo:           params.Repo,
		audit:          params.Audit,
		logg:           params.Logger,
		metrics:        params.Metrics,
		networkFeeSats: networkFee,
	}, nil
}

// CalculateInput is the input to CalculateWithdrawal.
type CalculateInput struct {
	CreatorID         uuid.UUID `json:"creator_id" validate:"required"`
	TotalSats         int64     `json:"total_sats" validate:"required"`
	IncludeServiceFee *bool     `json:"include_service_fee,omitempty"`
}

// Breakdown is the priced payout split.
type Breakdown struct {
	CreatorID      uuid.UUID     `json:"creator_id"`
	TotalSats      int64         `json:"total_sats"`
	PayoutSats     int64         `json:"payout_sats"`
	ServiceSats    int64         `json:"service_sats"`
	NetworkFeeSats int64         `json:"network_fee_sats"`
	BasisPoints    int           `json:"basis_points"`
	FeeType        enums.FeeType `json:"fee_type"`
	FeeApplied     bool          `json:"fee_applied"`
}

// CalculateWithdrawal prices a payout. An explicit IncludeServiceFee wins;
// otherwise the creator's opt-in flag decides. The fee computation is the
// same for every tier; the FeeType label alone distinguishes the mandatory
// framing of paid tiers from the voluntary framing of the free tier.
func (s *Service) CalculateWithdrawal(ctx context.Context, input CalculateInput) (*Breakdown, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.TotalSats <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal total must be positive")
	}

	creator, err := s.repo.FindCreator(ctx, input.CreatorID)
	if err != nil {
		return nil, err
	}

	applyFee := creator.FeeOptIn
	if input.IncludeServiceFee != nil {
		applyFee = *input.IncludeServiceFee
	}

	var serviceSats int64
	if applyFee {
		serviceSats = input.TotalSats * int64(creator.FeeBasisPoints) / 10000
	}
	networkFee := s.networkFeeSats
	payout := input.TotalSats - serviceSats - networkFee
	if payout < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal total does not cover fees")
	}

	feeType := enums.FeeTypeVoluntary
	if creator.Tier.IsPaid() {
		feeType = enums.FeeTypeMandatory
	}

	return &Breakdown{
		CreatorID:      input.CreatorID,
		TotalSats:      input.TotalSats,
		PayoutSats:     payout,
		ServiceSats:    serviceSats,
		NetworkFeeSats: networkFee,
		BasisPoints:    creator.FeeBasisPoints,
		FeeType:        feeType,
		FeeApplied:     applyFee,
	}, nil
}

// CreateInput is the input to CreateWithdrawal.
type CreateInput struct {
	CreatorID          uuid.UUID `json:"creator_id" validate:"required"`
	TotalSats          int64     `json:"total_sats" validate:"required"`
	DestinationAddress string    `json:"destination_address" validate:"required"`
	IncludeServiceFee  *bool     `json:"include_service_fee,omitempty"`
}

// CreateWithdrawal prices the payout and persists the initial pending record
// with the breakdown kept in metadata. Service-fee revenue feeds the metric
// fire-and-forget.
func (s *Service) CreateWithdrawal(ctx context.Context, input CreateInput) (*models.Withdrawal, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	breakdown, err := s.CalculateWithdrawal(ctx, CalculateInput{
		CreatorID:         input.CreatorID,
		TotalSats:         input.TotalSats,
		IncludeServiceFee: input.IncludeServiceFee,
	})
	if err != nil {
		return nil, err
	}

	withdrawal := &models.Withdrawal{
		CreatorID:          input.CreatorID,
		TotalSats:          breakdown.TotalSats,
		PayoutSats:         breakdown.PayoutSats,
		ServiceFeeSats:     breakdown.ServiceSats,
		NetworkFeeSats:     breakdown.NetworkFeeSats,
		DestinationAddress: input.DestinationAddress,
		Status:             enums.WithdrawalStatusPending,
	}
	if raw, marshalErr := json.Marshal(breakdown); marshalErr == nil {
		withdrawal.Metadata = raw
	}
	if err := s.repo.CreateWithdrawal(ctx, withdrawal); err != nil {
		return nil, err
	}

	if breakdown.ServiceSats > 0 {
		s.metrics.AddFeeRevenue(breakdown.ServiceSats)
	}
	s.metrics.IncCreated()
	s.audit.Record(ctx, audit.Entry{
		CreatorID:  input.CreatorID,
		Action:     "withdrawal.requested",
		EntityType: "withdrawal",
		EntityID:   withdrawal.ID.String(),
		Metadata: map[string]any{
			"total_sats":  breakdown.TotalSats,
			"payout_sats": breakdown.PayoutSats,
			"fee_sats":    breakdown.ServiceSats,
			"fee_type":    breakdown.FeeType,
		},
	})
	return withdrawal, nil
}

// GetWithdrawal reads one withdrawal, enforcing ownership.
func (s *Service) GetWithdrawal(ctx context.Context, creatorID, id uuid.UUID) (*models.Withdrawal, error) {
	withdrawal, err := s.repo.FindWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	if withdrawal.CreatorID != creatorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "withdrawal belongs to another creator")
	}
	return withdrawal, nil
}

// ListWithdrawals returns a creator's recent withdrawals.
func (s *Service) ListWithdrawals(ctx context.Context, creatorID uuid.UUID, limit int) ([]models.Withdrawal, error) {
	return s.repo.ListByCreator(ctx, creatorID, limit)
}
