package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-wallet/pkg/enums"
)

// WalletTransaction is one append-only ledger row. Only Status (and UpdatedAt)
// change after insert.
type WalletTransaction struct {
	ID                   uuid.UUID                     `gorm:"column:id;type:uuid;primaryKey"`
	VendorID             uuid.UUID                     `gorm:"column:vendor_id;type:uuid;not null"`
	Type                 enums.WalletTransactionType   `gorm:"column:type;type:text;not null"`
	Direction            enums.WalletDirection         `gorm:"column:direction;type:text;not null"`
	AmountPaise          int64                         `gorm:"column:amount_paise;not null"`
	Status               enums.WalletTransactionStatus `gorm:"column:status;type:text;not null"`
	OrderCode            *string                       `gorm:"column:order_code"`
	SubOrderID           *string                       `gorm:"column:sub_order_id"`
	IdempotencyKey       *string                       `gorm:"column:idempotency_key"`
	RelatedTransactionID *uuid.UUID                    `gorm:"column:related_transaction_id;type:uuid"`
	MaturesAt            *time.Time                    `gorm:"column:matures_at"`
	EffectiveAt          time.Time                     `gorm:"column:effective_at;not null"`
	PayoutMethod         *enums.PayoutMethod           `gorm:"column:payout_method;type:text"`
	Reference            *string                       `gorm:"column:reference"`
	Note                 *string                       `gorm:"column:note"`
	Metadata             WalletTransactionMetadata     `gorm:"column:metadata;type:jsonb;serializer:json"`
	CreatedAt            time.Time                     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                     `gorm:"column:updated_at;autoUpdateTime"`
}

// WalletTransactionMetadata carries provenance that is not queried directly.
type WalletTransactionMetadata struct {
	SourceEventID string `json:"source_event_id,omitempty"`
	Actor         string `json:"actor,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func (t *WalletTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// SignedAmount returns the amount with the direction applied.
func (t WalletTransaction) SignedAmount() int64 {
	return t.Direction.Sign() * t.AmountPaise
}
