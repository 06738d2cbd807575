package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-wallet/api/validators"
	"github.com/angelmondragon/packfinderz-wallet/internal/wallet"
	"github.com/angelmondragon/packfinderz-wallet/pkg/db/models"
	"github.com/angelmondragon/packfinderz-wallet/pkg/enums"
	"github.com/angelmondragon/packfinderz-wallet/pkg/pagination"
)

type balancesView struct {
	Hold           string `json:"hold"`
	Available      string `json:"available"`
	Paid           string `json:"paid"`
	HoldPaise      int64  `json:"holdPaise"`
	AvailablePaise int64  `json:"availablePaise"`
	PaidPaise      int64  `json:"paidPaise"`
}

func newBalancesView(b wallet.Balances) balancesView {
	return balancesView{
		Hold:           validators.PaiseToRupees(b.HoldPaise),
		Available:      validators.PaiseToRupees(b.AvailablePaise),
		Paid:           validators.PaiseToRupees(b.PaidPaise),
		HoldPaise:      b.HoldPaise,
		AvailablePaise: b.AvailablePaise,
		PaidPaise:      b.PaidPaise,
	}
}

type transactionView struct {
	ID                   uuid.UUID                     `json:"id"`
	VendorID             uuid.UUID                     `json:"vendorId"`
	Type                 enums.WalletTransactionType   `json:"type"`
	Direction            enums.WalletDirection         `json:"direction"`
	Status               enums.WalletTransactionStatus `json:"status"`
	Amount               string                        `json:"amount"`
	AmountPaise          int64                         `json:"amountPaise"`
	OrderCode            *string                       `json:"orderCode,omitempty"`
	SubOrderID           *string                       `json:"subOrderId,omitempty"`
	IdempotencyKey       *string                       `json:"idempotencyKey,omitempty"`
	RelatedTransactionID *uuid.UUID                    `json:"relatedTransactionId,omitempty"`
	MaturesAt            *time.Time                    `json:"maturesAt,omitempty"`
	EffectiveAt          time.Time                     `json:"effectiveAt"`
	PayoutMethod         *enums.PayoutMethod           `json:"payoutMethod,omitempty"`
	Reference            *string                       `json:"reference,omitempty"`
	Note                 *string                       `json:"note,omitempty"`
	Actor                string                        `json:"actor,omitempty"`
	CreatedAt            time.Time                     `json:"createdAt"`
}

func newTransactionView(t models.WalletTransaction) transactionView {
	return transactionView{
		ID:                   t.ID,
		VendorID:             t.VendorID,
		Type:                 t.Type,
		Direction:            t.Direction,
		Status:               t.Status,
		Amount:               validators.PaiseToRupees(t.AmountPaise),
		AmountPaise:          t.AmountPaise,
		OrderCode:            t.OrderCode,
		SubOrderID:           t.SubOrderID,
		IdempotencyKey:       t.IdempotencyKey,
		RelatedTransactionID: t.RelatedTransactionID,
		MaturesAt:            t.MaturesAt,
		EffectiveAt:          t.EffectiveAt,
		PayoutMethod:         t.PayoutMethod,
		Reference:            t.Reference,
		Note:                 t.Note,
		Actor:                t.Metadata.Actor,
		CreatedAt:            t.CreatedAt,
	}
}

type vendorSummaryView struct {
	VendorID uuid.UUID    `json:"vendorId"`
	Name     string       `json:"name"`
	Balances balancesView `json:"balances"`
}

type vendorListView struct {
	Items []vendorSummaryView `json:"items"`
	pagination.Page
}

func newVendorListView(list *wallet.VendorList) vendorListView {
	items := make([]vendorSummaryView, 0, len(list.Items))
	for _, item := range list.Items {
		items = append(items, vendorSummaryView{
			VendorID: item.VendorID,
			Name:     item.Name,
			Balances: newBalancesView(item.Balances),
		})
	}
	return vendorListView{Items: items, Page: list.Page}
}

type vendorWalletView struct {
	VendorID uuid.UUID         `json:"vendorId"`
	Name     string            `json:"name"`
	Balances balancesView      `json:"balances"`
	Items    []transactionView `json:"items"`
	pagination.Page
}

func newVendorWalletView(w *wallet.VendorWallet) vendorWalletView {
	items := make([]transactionView, 0, len(w.Items))
	for _, item := range w.Items {
		items = append(items, newTransactionView(item))
	}
	return vendorWalletView{
		VendorID: w.VendorID,
		Name:     w.Name,
		Balances: newBalancesView(w.Balances),
		Items:    items,
		Page:     w.Page,
	}
}

type mutationView struct {
	Transaction transactionView `json:"transaction"`
	Balances    balancesView    `json:"balances"`
	Created     bool            `json:"created"`
}

type reconcileView struct {
	VendorID   uuid.UUID    `json:"vendorId"`
	Projection balancesView `json:"projection"`
	Ledger     balancesView `json:"ledger"`
	Drift      balancesView `json:"drift"`
	Consistent bool         `json:"consistent"`
}

type unlockView struct {
	Promoted       int         `json:"promoted"`
	PromotedAmount string      `json:"promotedAmount"`
	PromotedPaise  int64       `json:"promotedPaise"`
	VendorsTouched []uuid.UUID `json:"vendorsTouched"`
}

func newUnlockView(result *wallet.UnlockResult) unlockView {
	return unlockView{
		Promoted:       result.Promoted,
		PromotedAmount: validators.PaiseToRupees(result.PromotedPaise),
		PromotedPaise:  result.PromotedPaise,
		VendorsTouched: result.VendorsTouched,
	}
}
