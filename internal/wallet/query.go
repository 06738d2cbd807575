package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-wallet/pkg/db/models"
	"github.com/angelmondragon/packfinderz-wallet/pkg/pagination"
)

// GetBalances returns the stored projection. Vendors without ledger activity
// read as zero.
func (s *service) GetBalances(ctx context.Context, vendorID uuid.UUID) (Balances, error) {
	if vendorID == uuid.Nil {
		return Balances{}, validationError("vendor id required")
	}
	var out Balances
	err := s.db.ReadTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		vendor, err := repo.FindVendor(ctx, vendorID)
		if err != nil {
			return err
		}
		if vendor == nil {
			return vendorNotFound(vendorID)
		}
		account, err := repo.GetAccount(ctx, vendorID)
		if err != nil {
			return err
		}
		out = balancesOf(account)
		return nil
	})
	if err != nil {
		return Balances{}, dependencyError(err, "load balances")
	}
	return out, nil
}

// Reconcile recomputes the buckets from ledger rows and compares them with
// the stored projection.
func (s *service) Reconcile(ctx context.Context, vendorID uuid.UUID) (*ReconcileReport, error) {
	if vendorID == uuid.Nil {
		return nil, validationError("vendor id required")
	}
	report := &ReconcileReport{VendorID: vendorID}
	err := s.db.ReadTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		vendor, err := repo.FindVendor(ctx, vendorID)
		if err != nil {
			return err
		}
		if vendor == nil {
			return vendorNotFound(vendorID)
		}
		account, err := repo.GetAccount(ctx, vendorID)
		if err != nil {
			return err
		}
		ledger, err := repo.BucketSums(ctx, vendorID)
		if err != nil {
			return err
		}
		report.Projection = balancesOf(account)
		report.Ledger = ledger
		return nil
	})
	if err != nil {
		return nil, dependencyError(err, "reconcile wallet")
	}
	report.Drift = Balances{
		HoldPaise:      report.Projection.HoldPaise - report.Ledger.HoldPaise,
		AvailablePaise: report.Projection.AvailablePaise - report.Ledger.AvailablePaise,
		PaidPaise:      report.Projection.PaidPaise - report.Ledger.PaidPaise,
	}
	report.Consistent = report.Drift == Balances{}
	if !report.Consistent {
		logCtx := s.logg.WithFields(s.logg.WithVendorID(ctx, vendorID.String()), map[string]any{
			"drift_hold":      report.Drift.HoldPaise,
			"drift_available": report.Drift.AvailablePaise,
			"drift_paid":      report.Drift.PaidPaise,
		})
		s.logg.Warn(logCtx, "wallet.reconcile.drift")
	}
	return report, nil
}

func (s *service) ListVendors(ctx context.Context, query VendorListQuery) (*VendorList, error) {
	params := query.Page.Normalize()
	out := &VendorList{Items: []VendorSummary{}}
	err := s.db.ReadTx(ctx, func(tx *gorm.DB) error {
		rows, total, err := s.repo.WithTx(tx).ListVendorsWithBalances(ctx, query.Search, params.Limit, params.Offset())
		if err != nil {
			return err
		}
		for _, row := range rows {
			out.Items = append(out.Items, VendorSummary{
				VendorID: row.VendorID,
				Name:     row.Name,
				Balances: Balances{
					HoldPaise:      row.HoldPaise,
					AvailablePaise: row.AvailablePaise,
					PaidPaise:      row.PaidPaise,
				},
			})
		}
		out.Page = pagination.NewPage(params, total)
		return nil
	})
	if err != nil {
		return nil, dependencyError(err, "list vendors")
	}
	return out, nil
}

// GetVendorWallet reads balances and a page of history from one snapshot.
func (s *service) GetVendorWallet(ctx context.Context, query VendorWalletQuery) (*VendorWallet, error) {
	if query.VendorID == uuid.Nil {
		return nil, validationError("vendor id required")
	}
	if query.Type != nil && !query.Type.IsValid() {
		return nil, validationError("invalid transaction type filter")
	}
	if query.Status != nil && !query.Status.IsValid() {
		return nil, validationError("invalid transaction status filter")
	}
	params := query.Page.Normalize()
	out := &VendorWallet{VendorID: query.VendorID}
	err := s.db.ReadTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		vendor, err := repo.FindVendor(ctx, query.VendorID)
		if err != nil {
			return err
		}
		if vendor == nil {
			return vendorNotFound(query.VendorID)
		}
		account, err := repo.GetAccount(ctx, query.VendorID)
		if err != nil {
			return err
		}
		rows, total, err := repo.ListTransactions(ctx, TransactionFilter{
			VendorID: query.VendorID,
			Search:   query.Search,
			Type:     query.Type,
			Status:   query.Status,
			Limit:    params.Limit,
			Offset:   params.Offset(),
		})
		if err != nil {
			return err
		}
		out.Name = vendor.Name
		out.Balances = balancesOf(account)
		out.Items = rows
		out.Page = pagination.NewPage(params, total)
		return nil
	})
	if err != nil {
		return nil, dependencyError(err, "load vendor wallet")
	}
	if out.Items == nil {
		out.Items = []models.WalletTransaction{}
	}
	return out, nil
}
