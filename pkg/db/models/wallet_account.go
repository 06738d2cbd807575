package models

import (
	"time"

	"github.com/google/uuid"
)

// WalletAccount is the per-vendor balance projection over wallet_transactions.
type WalletAccount struct {
	VendorID       uuid.UUID `gorm:"column:vendor_id;type:uuid;primaryKey"`
	HoldPaise      int64     `gorm:"column:hold_paise;not null;default:0"`
	AvailablePaise int64     `gorm:"column:available_paise;not null;default:0"`
	PaidPaise      int64     `gorm:"column:paid_paise;not null;default:0"`
	Version        int64     `gorm:"column:version;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
