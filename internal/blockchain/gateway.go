package blockchain

import (
	"context"
	"errors"
)

// ErrTxNotFound reports that the chain data provider has no record of the
// requested transaction. Verification treats this as a soft failure.
var ErrTxNotFound = errors.New("transaction not found")

// Output is a single transaction output as reported by the data provider.
type Output struct {
	Address   string `json:"address"`
	ValueSats int64  `json:"value_sats"`
	Script    string `json:"script"`
}

// Input identifies a spending input's source address.
type Input struct {
	Address string `json:"address"`
}

// Tx is the provider's view of an on-chain transaction.
type Tx struct {
	TxID          string   `json:"txid"`
	Inputs        []Input  `json:"vin"`
	Outputs       []Output `json:"vout"`
	Confirmations int      `json:"confirmations"`
	BlockHeight   *int64   `json:"block_height"`
}

// Gateway is the narrow read/broadcast contract against the blockchain data
// provider. GetTransaction returns ErrTxNotFound (possibly wrapped) when the
// txid is unknown; other failures carry a retryable-vs-fatal distinction and
// callers must not retry fatal ones.
type Gateway interface {
	GetTransaction(ctx context.Context, txid string) (*Tx, error)
	BroadcastTransaction(ctx context.Context, rawHex string) (string, error)
}
