package payloads

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WalletBalances mirrors the projection after the change, in paise.
type WalletBalances struct {
	HoldPaise      int64 `json:"holdPaise"`
	AvailablePaise int64 `json:"availablePaise"`
	PaidPaise      int64 `json:"paidPaise"`
}

// PayoutReleasedEvent is emitted when available funds are reserved as paid.
type PayoutReleasedEvent struct {
	VendorID      uuid.UUID      `json:"vendorId"`
	TransactionID uuid.UUID      `json:"transactionId"`
	AmountPaise   int64          `json:"amountPaise"`
	Method        string         `json:"method"`
	Reference     *string        `json:"reference,omitempty"`
	Balances      WalletBalances `json:"balances"`
	ReleasedAt    time.Time      `json:"releasedAt"`
}

// PayoutFailedEvent is emitted when a released payout is reported failed and reverted.
type PayoutFailedEvent struct {
	VendorID             uuid.UUID      `json:"vendorId"`
	TransactionID        uuid.UUID      `json:"transactionId"`
	ReleaseTransactionID uuid.UUID      `json:"releaseTransactionId"`
	AmountPaise          int64          `json:"amountPaise"`
	Method               string         `json:"method"`
	Reference            *string        `json:"reference,omitempty"`
	Reason               string         `json:"reason"`
	Balances             WalletBalances `json:"balances"`
	FailedAt             time.Time      `json:"failedAt"`
}

// FundsUnlockedEvent is emitted per promoted HOLD credit.
type FundsUnlockedEvent struct {
	VendorID      uuid.UUID      `json:"vendorId"`
	TransactionID uuid.UUID      `json:"transactionId"`
	NetPaise      int64          `json:"netPaise"`
	SubOrderID    *string        `json:"subOrderId,omitempty"`
	Balances      WalletBalances `json:"balances"`
	UnlockedAt    time.Time      `json:"unlockedAt"`
}

// VendorScoped is implemented by payloads that belong to one vendor wallet.
type VendorScoped interface {
	Vendor() uuid.UUID
}

func (e PayoutReleasedEvent) Vendor() uuid.UUID { return e.VendorID }
func (e PayoutFailedEvent) Vendor() uuid.UUID   { return e.VendorID }
func (e FundsUnlockedEvent) Vendor() uuid.UUID  { return e.VendorID }

func (e PayoutReleasedEvent) Validate() error {
	return validatePayout(e.VendorID, e.TransactionID, e.AmountPaise)
}

func (e PayoutFailedEvent) Validate() error {
	if e.ReleaseTransactionID == uuid.Nil {
		return errors.New("releaseTransactionId required")
	}
	return validatePayout(e.VendorID, e.TransactionID, e.AmountPaise)
}

func (e FundsUnlockedEvent) Validate() error {
	if e.VendorID == uuid.Nil {
		return errors.New("vendorId required")
	}
	if e.TransactionID == uuid.Nil {
		return errors.New("transactionId required")
	}
	if e.NetPaise < 0 {
		return fmt.Errorf("netPaise must not be negative, got %d", e.NetPaise)
	}
	return nil
}

func validatePayout(vendorID, transactionID uuid.UUID, amountPaise int64) error {
	if vendorID == uuid.Nil {
		return errors.New("vendorId required")
	}
	if transactionID == uuid.Nil {
		return errors.New("transactionId required")
	}
	if amountPaise <= 0 {
		return fmt.Errorf("amountPaise must be positive, got %d", amountPaise)
	}
	return nil
}
