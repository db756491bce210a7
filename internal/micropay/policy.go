package micropay

import (
	"fmt"

	"github.com/creatorsats/creatorsats-backend/pkg/config"
	"github.com/creatorsats/creatorsats-backend/pkg/enums"
	pkgerrors "github.com/creatorsats/creatorsats-backend/pkg/errors"
)

// Linear transaction size model: P2PKH input/output weights plus framing.
const (
	bytesPerInput  = 148
	bytesPerOutput = 34
	bytesOverhead  = 10
)

// satsPerByte by priority. Rates mirror what the relay estimator quotes for
// next-block, next-few-blocks, and whenever.
var satsPerByte = map[enums.FeePriority]int64{
	enums.FeePriorityFast:   3,
	enums.FeePriorityNormal: 2,
	enums.FeePriorityLow:    1,
}

// Policy classifies amounts and estimates fees. All methods are pure.
type Policy struct {
	dustFloorSats  int64
	microCeiling   int64
	batchThreshold int64
}

// NewPolicy builds a policy from payment configuration.
func NewPolicy(cfg config.PaymentsConfig) *Policy {
	return &Policy{
		dustFloorSats:  cfg.DustFloorSats,
		microCeiling:   cfg.MicroCeilingSats,
		batchThreshold: cfg.BatchThresholdSats,
	}
}

// DustFloorSats returns the minimum settleable amount.
func (p *Policy) DustFloorSats() int64 {
	return p.dustFloorSats
}

// IsMicropayment reports whether the amount falls in the micropayment band.
func (p *Policy) IsMicropayment(amountSats int64) bool {
	return amountSats > 0 && amountSats <= p.microCeiling
}

// ShouldBatch reports whether the amount is small enough that batching with
// other payments is worth recommending.
func (p *Policy) ShouldBatch(amountSats int64) bool {
	return amountSats > 0 && amountSats < p.batchThreshold
}

// ValidateAmount rejects amounts below the dust floor.
func (p *Policy) ValidateAmount(amountSats int64) error {
	if amountSats < p.dustFloorSats {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("amount %d sats is below the %d sat dust floor", amountSats, p.dustFloorSats))
	}
	return nil
}

// CalculateOptimizedFee estimates the fee for a transaction with the given
// input/output counts at the requested priority.
func CalculateOptimizedFee(inputs, outputs int, priority enums.FeePriority) (int64, error) {
	if inputs <= 0 || outputs <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "inputs and outputs must be positive")
	}
	rate, ok := satsPerByte[priority]
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown fee priority %q", priority))
	}
	size := int64(inputs)*bytesPerInput + int64(outputs)*bytesPerOutput + bytesOverhead
	return size * rate, nil
}
