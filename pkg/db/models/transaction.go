package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transaction is an observed, verified on-chain movement of funds. TxID is
// chain-native and globally unique; a second report of the same txid is a
// conflict, never a new row. Confirmed is monotonic once set.
type Transaction struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TxID            string          `gorm:"column:txid;not null;uniqueIndex:idx_transactions_txid"`
	CreatorID       uuid.UUID       `gorm:"column:creator_id;type:uuid;not null;index"`
	IntentID        *uuid.UUID      `gorm:"column:intent_id;type:uuid"`
	AmountSats      int64           `gorm:"column:amount_sats;not null"`
	SenderAddress   string          `gorm:"column:sender_address"`
	ReceiverAddress string          `gorm:"column:receiver_address;not null"`
	Confirmations   int             `gorm:"column:confirmations;not null;default:0"`
	Confirmed       bool            `gorm:"column:confirmed;not null;default:false"`
	ConfirmedAt     *time.Time      `gorm:"column:confirmed_at"`
	BlockHeight     *int64          `gorm:"column:block_height"`
	Payload         json.RawMessage `gorm:"column:payload"`
	Metadata        json.RawMessage `gorm:"column:metadata"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
