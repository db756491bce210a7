package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/creatorsats/creatorsats-backend/internal/blockchain"
)

// VerifyParams narrows what a reported payment must look like on chain.
type VerifyParams struct {
	ExpectedAmountSats int64
	ExpectedReceiver   string
	ExpectedSender     string
	MinConfirmations   int
}

// Verification is the outcome of checking a reported txid against the chain.
// Gateway failures and mismatches surface as Valid=false with a reason, never
// as an error: one flaky gateway call must degrade one payment report, not
// the request that carried it.
type Verification struct {
	Valid         bool   `json:"valid"`
	TxID          string `json:"txid"`
	ReceivedSats  int64  `json:"received_sats"`
	Confirmations int    `json:"confirmations"`
	IsConfirmed   bool   `json:"is_confirmed"`
	BlockHeight   *int64 `json:"block_height,omitempty"`
	Payload       string `json:"payload,omitempty"`
	Error         string `json:"error,omitempty"`
}

// VerifyTransaction fetches the transaction and checks that the expected
// receiver collected at least the expected amount. Safe to call repeatedly;
// used both at ingestion and by the confirmation tracker.
func (s *Service) VerifyTransaction(ctx context.Context, txid string, params VerifyParams) (*Verification, error) {
	result := &Verification{TxID: txid}

	tx, err := s.gateway.GetTransaction(ctx, txid)
	if err != nil {
		if errors.Is(err, blockchain.ErrTxNotFound) {
			result.Error = "transaction not found"
		} else {
			result.Error = err.Error()
		}
		return result, nil
	}

	var received int64
	for _, out := range tx.Outputs {
		if out.Address == params.ExpectedReceiver {
			received += out.ValueSats
		}
		if result.Payload == "" {
			if payload, ok := blockchain.DecodeOpReturn(out.Script); ok {
				result.Payload = payload
			}
		}
	}
	result.ReceivedSats = received
	result.Confirmations = tx.Confirmations
	result.BlockHeight = tx.BlockHeight

	minConfirmations := params.MinConfirmations
	if minConfirmations <= 0 {
		minConfirmations = s.minConfirmations
	}
	result.IsConfirmed = tx.Confirmations >= minConfirmations

	if received < params.ExpectedAmountSats {
		result.Error = fmt.Sprintf("expected %d sats to %s, found %d",
			params.ExpectedAmountSats, params.ExpectedReceiver, received)
		return result, nil
	}

	result.Valid = true
	return result, nil
}
