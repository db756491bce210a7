package pricefeed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/creatorsats/creatorsats-backend/pkg/config"
)

const satsPerCoin = 100_000_000

// Feed reports the fiat price of one whole coin. Implementations may hit an
// external market-data provider; callers treat the rate as advisory.
type Feed interface {
	RateUSD(ctx context.Context) (decimal.Decimal, error)
}

// Static is a Feed pinned to a configured rate. It stands in until a live
// market-data integration is wired up.
type Static struct {
	rate decimal.Decimal
}

// NewStatic builds a static feed from configuration.
func NewStatic(cfg config.PriceFeedConfig) (*Static, error) {
	rate, err := decimal.NewFromString(cfg.RateUSD)
	if err != nil {
		return nil, fmt.Errorf("parsing price feed rate %q: %w", cfg.RateUSD, err)
	}
	if rate.Sign() <= 0 {
		return nil, fmt.Errorf("price feed rate must be positive, got %s", rate)
	}
	return &Static{rate: rate}, nil
}

// RateUSD returns the configured rate.
func (s *Static) RateUSD(ctx context.Context) (decimal.Decimal, error) {
	return s.rate, nil
}

// SatsToUSD converts a satoshi amount to USD at the given rate.
func SatsToUSD(sats int64, rateUSD decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(sats).
		Mul(rateUSD).
		Div(decimal.NewFromInt(satsPerCoin))
}
