package wallet

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-wallet/pkg/db/models"
	"github.com/angelmondragon/packfinderz-wallet/pkg/enums"
	"github.com/angelmondragon/packfinderz-wallet/pkg/outbox/payloads"
	"github.com/angelmondragon/packfinderz-wallet/pkg/pagination"
)

// Balances is a snapshot of the three buckets, in paise.
type Balances struct {
	HoldPaise      int64 `json:"holdPaise"`
	AvailablePaise int64 `json:"availablePaise"`
	PaidPaise      int64 `json:"paidPaise"`
}

func balancesOf(account *models.WalletAccount) Balances {
	if account == nil {
		return Balances{}
	}
	return Balances{
		HoldPaise:      account.HoldPaise,
		AvailablePaise: account.AvailablePaise,
		PaidPaise:      account.PaidPaise,
	}
}

func (b Balances) payload() payloads.WalletBalances {
	return payloads.WalletBalances{
		HoldPaise:      b.HoldPaise,
		AvailablePaise: b.AvailablePaise,
		PaidPaise:      b.PaidPaise,
	}
}

// Meta carries the optional audit fields of a ledger row.
type Meta struct {
	OrderCode     *string
	SubOrderID    *string
	Reference     *string
	Note          *string
	SourceEventID string
	Actor         string
}

// AppendInput is the generic ledger append.
type AppendInput struct {
	VendorID       uuid.UUID
	Type           enums.WalletTransactionType
	Direction      enums.WalletDirection
	Status         enums.WalletTransactionStatus
	AmountPaise    int64
	IdempotencyKey string
	MaturesAt      *time.Time
	EffectiveAt    *time.Time
	Meta           Meta
}

// AppendResult is returned by every append-style operation. Created is false
// when the idempotency key was already recorded and the stored row is returned.
type AppendResult struct {
	Transaction models.WalletTransaction
	Balances    Balances
	Created     bool
}

// CreditOnDeliveryInput records a delivered sub-order's earnings in HOLD.
type CreditOnDeliveryInput struct {
	VendorID       uuid.UUID
	OrderCode      string
	SubOrderID     string
	AmountPaise    int64
	MaturesAt      *time.Time
	DeliveredAt    *time.Time
	IdempotencyKey string
	SourceEventID  string
}

// DebitInput claws back a canceled or returned sub-order.
type DebitInput struct {
	VendorID       uuid.UUID
	Type           enums.WalletTransactionType
	OrderCode      string
	SubOrderID     string
	AmountPaise    int64
	IdempotencyKey string
	Note           *string
	SourceEventID  string
}

// AdjustmentInput is an admin correction.
type AdjustmentInput struct {
	VendorID       uuid.UUID
	Direction      enums.WalletDirection
	Bucket         enums.WalletTransactionStatus
	AmountPaise    int64
	MaturesAt      *time.Time
	Note           string
	IdempotencyKey string
	Actor          string
}

// ReleaseInput moves available funds to paid.
type ReleaseInput struct {
	VendorID       uuid.UUID
	AmountPaise    int64
	Method         enums.PayoutMethod
	Reference      *string
	Note           *string
	IdempotencyKey string
	Actor          string
}

// FailInput reverts a released payout the rail reported as failed.
type FailInput struct {
	VendorID       uuid.UUID
	AmountPaise    int64
	Method         enums.PayoutMethod
	Reference      *string
	Reason         string
	IdempotencyKey string
	Actor          string
}

// PayoutResult carries the row keyed by the caller's idempotency key.
type PayoutResult struct {
	Transaction models.WalletTransaction
	Balances    Balances
	Created     bool
}

// UnlockResult summarises one unlock batch. Promoted counts matured HOLD
// credits; the linked HOLD deductions that move with each credit are not
// counted separately. PromotedPaise is the net amount that reached AVAILABLE.
type UnlockResult struct {
	Promoted       int         `json:"promoted"`
	PromotedPaise  int64       `json:"promotedPaise"`
	VendorsTouched []uuid.UUID `json:"vendorsTouched"`
}

// ReconcileReport compares the stored projection with the ledger.
type ReconcileReport struct {
	VendorID   uuid.UUID `json:"vendorId"`
	Projection Balances  `json:"projection"`
	Ledger     Balances  `json:"ledger"`
	Drift      Balances  `json:"drift"`
	Consistent bool      `json:"consistent"`
}

// VendorListQuery drives listVendors.
type VendorListQuery struct {
	Search string
	Page   pagination.Params
}

// VendorSummary is one row of the vendor list.
type VendorSummary struct {
	VendorID uuid.UUID `json:"vendorId"`
	Name     string    `json:"name"`
	Balances Balances  `json:"balances"`
}

// VendorList is a page of vendor summaries.
type VendorList struct {
	Items []VendorSummary
	pagination.Page
}

// VendorWalletQuery drives getVendorWallet.
type VendorWalletQuery struct {
	VendorID uuid.UUID
	Search   string
	Type     *enums.WalletTransactionType
	Status   *enums.WalletTransactionStatus
	Page     pagination.Params
}

// VendorWallet is a vendor's balances with a page of ledger history.
type VendorWallet struct {
	VendorID uuid.UUID
	Name     string
	Balances Balances
	Items    []models.WalletTransaction
	pagination.Page
}
