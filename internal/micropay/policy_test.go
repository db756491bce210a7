package micropay

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/creatorsats/creatorsats-backend/pkg/config"
	"github.com/creatorsats/creatorsats-backend/pkg/enums"
	pkgerrors "github.com/creatorsats/creatorsats-backend/pkg/errors"
)

func testPolicy() *Policy {
	return NewPolicy(config.PaymentsConfig{
		DustFloorSats:      50,
		MicroCeilingSats:   100000,
		BatchThresholdSats: 10000,
	})
}

func TestIsMicropayment(t *testing.T) {
	p := testPolicy()
	cases := []struct {
		amount int64
		want   bool
	}{
		{0, false},
		{-5, false},
		{1, true},
		{100000, true},
		{100001, false},
	}
	for _, tc := range cases {
		if got := p.IsMicropayment(tc.amount); got != tc.want {
			t.Errorf("IsMicropayment(%d) = %v, want %v", tc.amount, got, tc.want)
		}
	}
}

func TestShouldBatch(t *testing.T) {
	p := testPolicy()
	if !p.ShouldBatch(9999) {
		t.Error("expected 9999 sats to be batchable")
	}
	if p.ShouldBatch(10000) {
		t.Error("expected 10000 sats not to be batchable")
	}
	if p.ShouldBatch(0) {
		t.Error("expected zero to not be batchable")
	}
}

func TestValidateAmountDustFloor(t *testing.T) {
	p := testPolicy()
	if err := p.ValidateAmount(50); err != nil {
		t.Fatalf("50 sats should pass: %v", err)
	}
	err := p.ValidateAmount(40)
	if err == nil {
		t.Fatal("expected dust rejection for 40 sats")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation code, got %v", err)
	}
}

func TestCalculateOptimizedFee(t *testing.T) {
	// 1 input, 2 outputs: 148 + 68 + 10 = 226 bytes.
	fee, err := CalculateOptimizedFee(1, 2, enums.FeePriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if fee != 452 {
		t.Errorf("normal fee = %d, want 452", fee)
	}

	fee, err = CalculateOptimizedFee(1, 2, enums.FeePriorityFast)
	if err != nil {
		t.Fatal(err)
	}
	if fee != 678 {
		t.Errorf("fast fee = %d, want 678", fee)
	}

	fee, err = CalculateOptimizedFee(1, 2, enums.FeePriorityLow)
	if err != nil {
		t.Fatal(err)
	}
	if fee != 226 {
		t.Errorf("low fee = %d, want 226", fee)
	}
}

func TestCalculateOptimizedFeeRejectsBadInput(t *testing.T) {
	if _, err := CalculateOptimizedFee(0, 1, enums.FeePriorityNormal); err == nil {
		t.Error("expected error for zero inputs")
	}
	if _, err := CalculateOptimizedFee(1, 0, enums.FeePriorityNormal); err == nil {
		t.Error("expected error for zero outputs")
	}
	if _, err := CalculateOptimizedFee(1, 1, enums.FeePriority("turbo")); err == nil {
		t.Error("expected error for unknown priority")
	}
}

func TestAnalyzePaymentEfficiencyBuckets(t *testing.T) {
	cases := []struct {
		amount int64
		fee    int64
		want   EfficiencyRating
	}{
		{100000, 500, RatingExcellent}, // 0.5%
		{100000, 2000, RatingGood},     // 2%
		{100000, 7000, RatingFair},     // 7%
		{100000, 20000, RatingPoor},    // 20%
	}
	for _, tc := range cases {
		eff, err := AnalyzePaymentEfficiency(tc.amount, tc.fee)
		if err != nil {
			t.Fatalf("AnalyzePaymentEfficiency(%d, %d): %v", tc.amount, tc.fee, err)
		}
		if eff.Rating != tc.want {
			t.Errorf("rating for fee %d on %d = %q, want %q", tc.fee, tc.amount, eff.Rating, tc.want)
		}
	}
}

func TestAnalyzePaymentEfficiencyRecommendsBatching(t *testing.T) {
	eff, err := AnalyzePaymentEfficiency(1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	if eff.Rating != RatingPoor {
		t.Fatalf("rating = %q, want poor", eff.Rating)
	}
	if eff.Recommendation == "" {
		t.Error("expected a batching recommendation for poor efficiency")
	}
}

func TestAnalyzePaymentEfficiencyRejectsInvalid(t *testing.T) {
	if _, err := AnalyzePaymentEfficiency(0, 10); err == nil {
		t.Error("expected error for zero amount")
	}
	if _, err := AnalyzePaymentEfficiency(100, -1); err == nil {
		t.Error("expected error for negative fee")
	}
}

func TestCalculateBatchSummary(t *testing.T) {
	amounts := []int64{1000, 2000, 3000}
	sum, err := CalculateBatchSummary(amounts, enums.FeePriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Count != 3 || sum.TotalSats != 6000 {
		t.Fatalf("count/total = %d/%d, want 3/6000", sum.Count, sum.TotalSats)
	}
	// Batched: 1 input, 4 outputs = 148 + 136 + 10 = 294 bytes @ 2 = 588.
	if sum.BatchedFeeSats != 588 {
		t.Errorf("batched fee = %d, want 588", sum.BatchedFeeSats)
	}
	// Individual: 3 × 452 = 1356.
	if sum.IndividualFeeSats != 1356 {
		t.Errorf("individual fee = %d, want 1356", sum.IndividualFeeSats)
	}
	if sum.SavingsSats != 768 {
		t.Errorf("savings = %d, want 768", sum.SavingsSats)
	}
	if sum.AverageAmountSats != 2000 {
		t.Errorf("average = %d, want 2000", sum.AverageAmountSats)
	}
}

func TestEfficiencyWithFiat(t *testing.T) {
	eff, err := AnalyzePaymentEfficiency(100000, 500)
	if err != nil {
		t.Fatal(err)
	}
	// 500 sats at 250 USD/coin: 500/1e8 × 250 = 0.00125 USD.
	got := eff.WithFiat(decimal.NewFromInt(250))
	if want := decimal.RequireFromString("0.00125"); !got.FeeUSD.Equal(want) {
		t.Errorf("fee usd = %s, want %s", got.FeeUSD, want)
	}
}

func TestCalculateBatchSummaryRecommendedFlag(t *testing.T) {
	sum, err := CalculateBatchSummary([]int64{1000, 2000}, enums.FeePriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Recommended {
		t.Error("expected batching to be recommended when it saves fees")
	}
	single, err := CalculateBatchSummary([]int64{1000}, enums.FeePriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	// A one-payment batch adds a change output and saves nothing.
	if single.Recommended {
		t.Error("expected no recommendation for a single payment")
	}
}

func TestCalculateBatchSummaryRejectsEmpty(t *testing.T) {
	if _, err := CalculateBatchSummary(nil, enums.FeePriorityNormal); err == nil {
		t.Error("expected error for empty batch")
	}
	if _, err := CalculateBatchSummary([]int64{100, 0}, enums.FeePriorityNormal); err == nil {
		t.Error("expected error for non-positive amount")
	}
}
