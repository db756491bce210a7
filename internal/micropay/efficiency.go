package micropay

import (
	"github.com/shopspring/decimal"

	"github.com/creatorsats/creatorsats-backend/pkg/enums"
	pkgerrors "github.com/creatorsats/creatorsats-backend/pkg/errors"
	"github.com/creatorsats/creatorsats-backend/pkg/pricefeed"
)

// EfficiencyRating buckets the fee-to-amount ratio for display.
type EfficiencyRating string

const (
	RatingExcellent EfficiencyRating = "excellent"
	RatingGood      EfficiencyRating = "good"
	RatingFair      EfficiencyRating = "fair"
	RatingPoor      EfficiencyRating = "poor"
)

var (
	ratioExcellent = decimal.NewFromInt(1)
	ratioGood      = decimal.NewFromInt(5)
	ratioFair      = decimal.NewFromInt(10)
	oneHundred     = decimal.NewFromInt(100)
)

// Efficiency describes how much of a payment the fee eats.
type Efficiency struct {
	AmountSats     int64            `json:"amount_sats"`
	FeeSats        int64            `json:"fee_sats"`
	FeePercent     decimal.Decimal  `json:"fee_percent"`
	FeeUSD         decimal.Decimal  `json:"fee_usd"`
	Rating         EfficiencyRating `json:"rating"`
	Recommendation string           `json:"recommendation,omitempty"`
}

// WithFiat annotates the efficiency with a fiat fee estimate at the given
// USD-per-coin rate.
func (e Efficiency) WithFiat(rateUSD decimal.Decimal) Efficiency {
	e.FeeUSD = pricefeed.SatsToUSD(e.FeeSats, rateUSD)
	return e
}

// AnalyzePaymentEfficiency computes the fee percentage of a payment and
// buckets it. Below 1% is excellent, below 5% good, below 10% fair, anything
// else poor. Poor and fair payments get a batching recommendation.
func AnalyzePaymentEfficiency(amountSats, feeSats int64) (Efficiency, error) {
	if amountSats <= 0 {
		return Efficiency{}, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if feeSats < 0 {
		return Efficiency{}, pkgerrors.New(pkgerrors.CodeValidation, "fee cannot be negative")
	}

	pct := decimal.NewFromInt(feeSats).
		Mul(oneHundred).
		Div(decimal.NewFromInt(amountSats))

	eff := Efficiency{
		AmountSats: amountSats,
		FeeSats:    feeSats,
		FeePercent: pct,
	}
	switch {
	case pct.LessThan(ratioExcellent):
		eff.Rating = RatingExcellent
	case pct.LessThan(ratioGood):
		eff.Rating = RatingGood
	case pct.LessThan(ratioFair):
		eff.Rating = RatingFair
		eff.Recommendation = "consider batching with other payments to reduce fee overhead"
	default:
		eff.Rating = RatingPoor
		eff.Recommendation = "fee consumes a large share of this payment; batch or increase the amount"
	}
	return eff, nil
}

// BatchSummary aggregates a set of payment amounts into a single settlement
// estimate, comparing the batched fee against paying each amount on its own.
type BatchSummary struct {
	Count             int             `json:"count"`
	TotalSats         int64           `json:"total_sats"`
	BatchedFeeSats    int64           `json:"batched_fee_sats"`
	IndividualFeeSats int64           `json:"individual_fee_sats"`
	SavingsSats       int64           `json:"savings_sats"`
	SavingsPercent    decimal.Decimal `json:"savings_percent"`
	AverageAmountSats int64           `json:"average_amount_sats"`
	Recommended       bool            `json:"recommended"`
}

// CalculateBatchSummary estimates the fee saved by settling the given amounts
// in one transaction (one input, one output per recipient plus change) rather
// than one transaction each.
func CalculateBatchSummary(amounts []int64, priority enums.FeePriority) (BatchSummary, error) {
	if len(amounts) == 0 {
		return BatchSummary{}, pkgerrors.New(pkgerrors.CodeValidation, "no amounts to batch")
	}

	var total int64
	for _, a := range amounts {
		if a <= 0 {
			return BatchSummary{}, pkgerrors.New(pkgerrors.CodeValidation, "amounts must be positive")
		}
		total += a
	}

	batched, err := CalculateOptimizedFee(1, len(amounts)+1, priority)
	if err != nil {
		return BatchSummary{}, err
	}
	single, err := CalculateOptimizedFee(1, 2, priority)
	if err != nil {
		return BatchSummary{}, err
	}
	individual := single * int64(len(amounts))

	savings := individual - batched
	if savings < 0 {
		savings = 0
	}
	pct := decimal.Zero
	if individual > 0 {
		pct = decimal.NewFromInt(savings).Mul(oneHundred).Div(decimal.NewFromInt(individual))
	}

	return BatchSummary{
		Count:             len(amounts),
		TotalSats:         total,
		BatchedFeeSats:    batched,
		IndividualFeeSats: individual,
		SavingsSats:       savings,
		SavingsPercent:    pct,
		AverageAmountSats: total / int64(len(amounts)),
		Recommended:       savings > 0,
	}, nil
}
