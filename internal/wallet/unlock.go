package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/packfinderz-wallet/pkg/enums"
	"github.com/angelmondragon/packfinderz-wallet/pkg/outbox"
	"github.com/angelmondragon/packfinderz-wallet/pkg/outbox/payloads"
)

// Unlock promotes matured HOLD credits to AVAILABLE, oldest first. Each row
// commits on its own so a failed or canceled batch can simply be rerun; rows
// already promoted are no longer selected.
func (s *service) Unlock(ctx context.Context, limit int) (*UnlockResult, error) {
	limit = s.unlockLimit(limit)
	now := s.now().UTC()

	candidates, err := s.repo.ListMaturedHoldCredits(ctx, now, limit)
	if err != nil {
		return nil, dependencyError(err, "list matured hold credits")
	}

	result := &UnlockResult{VendorsTouched: []uuid.UUID{}}
	touched := make(map[uuid.UUID]struct{})
	var errs error
	for _, candidate := range candidates {
		if ctxErr := ctx.Err(); ctxErr != nil {
			errs = multierr.Append(errs, ctxErr)
			break
		}
		net, promoted, err := s.promote(ctx, candidate.VendorID, candidate.ID, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("promote %s: %w", candidate.ID, err))
			continue
		}
		if !promoted {
			continue
		}
		result.Promoted++
		result.PromotedPaise += net
		if _, seen := touched[candidate.VendorID]; !seen {
			touched[candidate.VendorID] = struct{}{}
			result.VendorsTouched = append(result.VendorsTouched, candidate.VendorID)
		}
	}
	s.metrics.AddPromoted(result.Promoted, result.PromotedPaise)

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"limit":           limit,
		"selected":        len(candidates),
		"promoted":        result.Promoted,
		"promoted_paise":  result.PromotedPaise,
		"vendors_touched": len(result.VendorsTouched),
	})
	if errs != nil {
		s.logg.Error(logCtx, "wallet.unlock.partial", errs)
	} else {
		s.logg.Info(logCtx, "wallet.unlock.completed")
	}
	return result, errs
}

// promote moves one HOLD credit and the HOLD deductions linked to it into
// AVAILABLE. The buckets shift by the credit's net amount.
func (s *service) promote(ctx context.Context, vendorID, creditID uuid.UUID, now time.Time) (int64, bool, error) {
	var (
		net      int64
		promoted bool
	)
	err := s.withVendorTx(ctx, vendorID, func(u *vendorUnit) error {
		net, promoted = 0, false
		credit, err := u.repo.FindTransaction(ctx, creditID)
		if err != nil {
			return err
		}
		if credit == nil || credit.Status != enums.WalletStatusHold || credit.Direction != enums.WalletDirectionCredit {
			return nil
		}
		if credit.MaturesAt == nil || credit.MaturesAt.After(now) {
			return nil
		}

		debits, err := u.repo.ListLinkedHoldDebits(ctx, credit.ID)
		if err != nil {
			return err
		}
		ids := []uuid.UUID{credit.ID}
		amount := credit.AmountPaise
		for _, debit := range debits {
			ids = append(ids, debit.ID)
			amount -= debit.AmountPaise
		}

		moved, err := u.repo.UpdateStatus(ctx, ids, enums.WalletStatusHold, enums.WalletStatusAvailable)
		if err != nil {
			return err
		}
		if moved != int64(len(ids)) {
			return errVersionConflict
		}
		if err := u.apply(enums.WalletStatusHold, -amount); err != nil {
			return err
		}
		if err := u.apply(enums.WalletStatusAvailable, amount); err != nil {
			return err
		}

		if err := s.emit(ctx, u.tx, outbox.DomainEvent{
			EventType:     enums.EventWalletFundsUnlocked,
			AggregateType: enums.AggregateVendorWallet,
			AggregateID:   vendorID,
			Actor:         &outbox.ActorRef{Kind: "system", ID: "wallet-unlock"},
			Data: payloads.FundsUnlockedEvent{
				VendorID:      vendorID,
				TransactionID: credit.ID,
				NetPaise:      amount,
				SubOrderID:    credit.SubOrderID,
				Balances:      u.balances().payload(),
				UnlockedAt:    now,
			},
		}); err != nil {
			return err
		}
		net, promoted = amount, true
		return nil
	})
	return net, promoted, err
}

func (s *service) unlockLimit(limit int) int {
	if limit <= 0 {
		return s.unlockBatchSize
	}
	if limit > s.unlockBatchMax {
		return s.unlockBatchMax
	}
	return limit
}
