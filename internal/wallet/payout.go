package wallet

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-wallet/pkg/db/models"
	"github.com/angelmondragon/packfinderz-wallet/pkg/enums"
	"github.com/angelmondragon/packfinderz-wallet/pkg/metrics"
	"github.com/angelmondragon/packfinderz-wallet/pkg/outbox"
	"github.com/angelmondragon/packfinderz-wallet/pkg/outbox/payloads"
)

// Release reserves available funds for a payout: a DEBIT out of AVAILABLE and
// a linked CREDIT into PAID, written together.
func (s *service) Release(ctx context.Context, input ReleaseInput) (*PayoutResult, error) {
	if err := validatePayout(input.VendorID, input.AmountPaise, input.Method, input.IdempotencyKey); err != nil {
		s.metrics.IncAppend(string(enums.WalletTxnPayoutReleased), metrics.OutcomeRejected)
		return nil, err
	}
	key := strings.TrimSpace(input.IdempotencyKey)

	var result *PayoutResult
	err := s.withVendorTx(ctx, input.VendorID, func(u *vendorUnit) error {
		now := s.now().UTC()
		method := input.Method
		primary := &models.WalletTransaction{
			ID:             uuid.New(),
			VendorID:       input.VendorID,
			Type:           enums.WalletTxnPayoutReleased,
			Direction:      enums.WalletDirectionDebit,
			AmountPaise:    input.AmountPaise,
			Status:         enums.WalletStatusAvailable,
			IdempotencyKey: &key,
			EffectiveAt:    now,
			PayoutMethod:   &method,
			Reference:      input.Reference,
			Note:           input.Note,
			Metadata:       models.WalletTransactionMetadata{Actor: input.Actor},
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		existing, err := u.repo.FindByIdempotencyKey(ctx, input.VendorID, key)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := matchReplay(existing, primary); err != nil {
				return err
			}
			result = &PayoutResult{Transaction: *existing, Balances: u.balances()}
			return nil
		}

		if err := u.apply(enums.WalletStatusAvailable, -input.AmountPaise); err != nil {
			return err
		}
		if err := u.apply(enums.WalletStatusPaid, input.AmountPaise); err != nil {
			return err
		}
		if err := u.repo.InsertTransaction(ctx, primary); err != nil {
			return err
		}
		leg := &models.WalletTransaction{
			ID:                   uuid.New(),
			VendorID:             input.VendorID,
			Type:                 enums.WalletTxnPayoutReleased,
			Direction:            enums.WalletDirectionCredit,
			AmountPaise:          input.AmountPaise,
			Status:               enums.WalletStatusPaid,
			RelatedTransactionID: &primary.ID,
			EffectiveAt:          now,
			PayoutMethod:         &method,
			Reference:            input.Reference,
			Note:                 input.Note,
			Metadata:             models.WalletTransactionMetadata{Actor: input.Actor},
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := u.repo.InsertTransaction(ctx, leg); err != nil {
			return err
		}

		balances := u.balances()
		if err := s.emit(ctx, u.tx, outbox.DomainEvent{
			EventType:     enums.EventWalletPayoutReleased,
			AggregateType: enums.AggregateWalletTransaction,
			AggregateID:   primary.ID,
			Actor:         adminActor(input.Actor),
			Data: payloads.PayoutReleasedEvent{
				VendorID:      input.VendorID,
				TransactionID: primary.ID,
				AmountPaise:   input.AmountPaise,
				Method:        string(method),
				Reference:     input.Reference,
				Balances:      balances.payload(),
				ReleasedAt:    now,
			},
		}); err != nil {
			return err
		}
		result = &PayoutResult{Transaction: *primary, Balances: balances, Created: true}
		return nil
	})
	if err != nil {
		s.metrics.IncAppend(string(enums.WalletTxnPayoutReleased), metrics.OutcomeRejected)
		return nil, err
	}
	s.recordPayout(ctx, result, "wallet.payout.released")
	return result, nil
}

// Fail compensates a released payout the rail reported as failed. The most
// recent open release with the same amount (and reference, when given) is
// reversed and a PAYOUT_FAILED marker records the failure.
func (s *service) Fail(ctx context.Context, input FailInput) (*PayoutResult, error) {
	if err := validatePayout(input.VendorID, input.AmountPaise, input.Method, input.IdempotencyKey); err != nil {
		s.metrics.IncAppend(string(enums.WalletTxnPayoutFailed), metrics.OutcomeRejected)
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, validationError("failure reason required")
	}
	key := strings.TrimSpace(input.IdempotencyKey)

	var result *PayoutResult
	err := s.withVendorTx(ctx, input.VendorID, func(u *vendorUnit) error {
		now := s.now().UTC()
		method := input.Method
		marker := &models.WalletTransaction{
			ID:             uuid.New(),
			VendorID:       input.VendorID,
			Type:           enums.WalletTxnPayoutFailed,
			Direction:      enums.WalletDirectionCredit,
			AmountPaise:    input.AmountPaise,
			Status:         enums.WalletStatusFailed,
			IdempotencyKey: &key,
			EffectiveAt:    now,
			PayoutMethod:   &method,
			Reference:      input.Reference,
			Note:           &reason,
			Metadata:       models.WalletTransactionMetadata{Actor: input.Actor, Reason: reason},
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		existing, err := u.repo.FindByIdempotencyKey(ctx, input.VendorID, key)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := matchReplay(existing, marker); err != nil {
				return err
			}
			result = &PayoutResult{Transaction: *existing, Balances: u.balances()}
			return nil
		}

		release, err := u.repo.FindOpenReservation(ctx, input.VendorID, input.AmountPaise, input.Reference)
		if err != nil {
			return err
		}
		if release == nil {
			return noMatchingReservation(input.VendorID, input.AmountPaise, input.Reference)
		}
		leg, err := u.repo.FindPayoutLeg(ctx, release.ID)
		if err != nil {
			return err
		}
		if leg == nil || leg.Status != enums.WalletStatusPaid {
			return noMatchingReservation(input.VendorID, input.AmountPaise, input.Reference)
		}

		moved, err := u.repo.UpdateStatus(ctx, []uuid.UUID{release.ID}, enums.WalletStatusAvailable, enums.WalletStatusReversed)
		if err != nil {
			return err
		}
		if moved != 1 {
			return errVersionConflict
		}
		moved, err = u.repo.UpdateStatus(ctx, []uuid.UUID{leg.ID}, enums.WalletStatusPaid, enums.WalletStatusReversed)
		if err != nil {
			return err
		}
		if moved != 1 {
			return errVersionConflict
		}
		if err := u.apply(enums.WalletStatusPaid, -input.AmountPaise); err != nil {
			return err
		}
		if err := u.apply(enums.WalletStatusAvailable, input.AmountPaise); err != nil {
			return err
		}

		marker.RelatedTransactionID = &release.ID
		if err := u.repo.InsertTransaction(ctx, marker); err != nil {
			return err
		}

		balances := u.balances()
		if err := s.emit(ctx, u.tx, outbox.DomainEvent{
			EventType:     enums.EventWalletPayoutFailed,
			AggregateType: enums.AggregateWalletTransaction,
			AggregateID:   marker.ID,
			Actor:         adminActor(input.Actor),
			Data: payloads.PayoutFailedEvent{
				VendorID:             input.VendorID,
				TransactionID:        marker.ID,
				ReleaseTransactionID: release.ID,
				AmountPaise:          input.AmountPaise,
				Method:               string(method),
				Reference:            input.Reference,
				Reason:               reason,
				Balances:             balances.payload(),
				FailedAt:             now,
			},
		}); err != nil {
			return err
		}
		result = &PayoutResult{Transaction: *marker, Balances: balances, Created: true}
		return nil
	})
	if err != nil {
		s.metrics.IncAppend(string(enums.WalletTxnPayoutFailed), metrics.OutcomeRejected)
		return nil, err
	}
	s.recordPayout(ctx, result, "wallet.payout.failed")
	return result, nil
}

func validatePayout(vendorID uuid.UUID, amount int64, method enums.PayoutMethod, key string) error {
	if vendorID == uuid.Nil {
		return validationError("vendor id required")
	}
	if amount <= 0 {
		return validationError("amount must be positive")
	}
	if !method.IsValid() {
		return validationError("payout method must be UPI, BANK or MANUAL")
	}
	if strings.TrimSpace(key) == "" {
		return validationError("idempotency key required")
	}
	return nil
}

func adminActor(id string) *outbox.ActorRef {
	if id == "" {
		return &outbox.ActorRef{Kind: "admin"}
	}
	return &outbox.ActorRef{Kind: "admin", ID: id}
}

func (s *service) recordPayout(ctx context.Context, result *PayoutResult, msg string) {
	txn := result.Transaction
	outcome := metrics.OutcomeDuplicate
	if result.Created {
		outcome = metrics.OutcomeCreated
	} else {
		msg += ".replayed"
	}
	s.metrics.IncAppend(string(txn.Type), outcome)
	key := ""
	if txn.IdempotencyKey != nil {
		key = *txn.IdempotencyKey
	}
	logCtx := s.logg.WithFields(s.logg.WithAmount(s.logCtx(ctx, txn.VendorID, key), txn.AmountPaise), map[string]any{
		"transaction_id": txn.ID.String(),
		"available":      result.Balances.AvailablePaise,
		"paid":           result.Balances.PaidPaise,
	})
	s.logg.Info(logCtx, msg)
}
