package wallet

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-wallet/pkg/db/models"
	"github.com/angelmondragon/packfinderz-wallet/pkg/enums"
	"github.com/angelmondragon/packfinderz-wallet/pkg/metrics"
)

// Append records one ledger row and moves its bucket. Payout rows are written
// only by Release and Fail, which keep their paired rows together.
func (s *service) Append(ctx context.Context, input AppendInput) (*AppendResult, error) {
	if input.Type == enums.WalletTxnPayoutReleased || input.Type == enums.WalletTxnPayoutFailed {
		s.metrics.IncAppend(string(input.Type), metrics.OutcomeRejected)
		return nil, invalidShape("payout rows are written by release and fail only", map[string]any{"type": input.Type})
	}
	if err := validateAppend(input); err != nil {
		s.metrics.IncAppend(string(input.Type), metrics.OutcomeRejected)
		return nil, err
	}

	txn := s.newTransaction(input)
	var result *AppendResult
	err := s.withVendorTx(ctx, input.VendorID, func(u *vendorUnit) error {
		stored, created, err := s.appendLocked(ctx, u, txn)
		if err != nil {
			return err
		}
		result = &AppendResult{Transaction: *stored, Balances: u.balances(), Created: created}
		return nil
	})
	if err != nil {
		s.metrics.IncAppend(string(input.Type), metrics.OutcomeRejected)
		return nil, err
	}
	s.recordAppend(ctx, result)
	return result, nil
}

// CreditOnDelivery parks a delivered sub-order's earnings in HOLD until the
// return window closes.
func (s *service) CreditOnDelivery(ctx context.Context, input CreditOnDeliveryInput) (*AppendResult, error) {
	if strings.TrimSpace(input.SubOrderID) == "" && strings.TrimSpace(input.OrderCode) == "" {
		return nil, validationError("order code or sub order id required")
	}
	maturesAt := input.MaturesAt
	if maturesAt == nil {
		delivered := s.now().UTC()
		if input.DeliveredAt != nil {
			delivered = input.DeliveredAt.UTC()
		}
		m := delivered.Add(s.returnWindow)
		maturesAt = &m
	}
	return s.Append(ctx, AppendInput{
		VendorID:       input.VendorID,
		Type:           enums.WalletTxnDeliveredHoldCredit,
		Direction:      enums.WalletDirectionCredit,
		Status:         enums.WalletStatusHold,
		AmountPaise:    input.AmountPaise,
		IdempotencyKey: input.IdempotencyKey,
		MaturesAt:      maturesAt,
		EffectiveAt:    input.DeliveredAt,
		Meta: Meta{
			OrderCode:     strPtr(input.OrderCode),
			SubOrderID:    strPtr(input.SubOrderID),
			SourceEventID: input.SourceEventID,
		},
	})
}

// DebitOnCancelOrReturn claws back an order's earnings. While the matching
// delivery credit is still in HOLD the debit lands in HOLD against it,
// otherwise it comes out of AVAILABLE.
func (s *service) DebitOnCancelOrReturn(ctx context.Context, input DebitInput) (*AppendResult, error) {
	if !input.Type.IsDeduction() {
		return nil, invalidShape("deductions must be CANCEL_DEDUCT or RETURN_DEDUCT", map[string]any{"type": input.Type})
	}
	if strings.TrimSpace(input.SubOrderID) == "" && strings.TrimSpace(input.OrderCode) == "" {
		return nil, validationError("order code or sub order id required")
	}
	base := AppendInput{
		VendorID:       input.VendorID,
		Type:           input.Type,
		Direction:      enums.WalletDirectionDebit,
		Status:         enums.WalletStatusAvailable,
		AmountPaise:    input.AmountPaise,
		IdempotencyKey: input.IdempotencyKey,
		Meta: Meta{
			OrderCode:     strPtr(input.OrderCode),
			SubOrderID:    strPtr(input.SubOrderID),
			Note:          input.Note,
			SourceEventID: input.SourceEventID,
		},
	}
	if err := validateAppend(base); err != nil {
		s.metrics.IncAppend(string(input.Type), metrics.OutcomeRejected)
		return nil, err
	}

	var result *AppendResult
	err := s.withVendorTx(ctx, input.VendorID, func(u *vendorUnit) error {
		txn := s.newTransaction(base)
		credit, err := u.repo.FindHoldCreditForOrder(ctx, txn.VendorID, txn.SubOrderID, txn.OrderCode)
		if err != nil {
			return err
		}
		if credit != nil {
			txn.RelatedTransactionID = &credit.ID
			if credit.Status == enums.WalletStatusHold {
				txn.Status = enums.WalletStatusHold
			}
		}
		stored, created, err := s.appendLocked(ctx, u, txn)
		if err != nil {
			return err
		}
		result = &AppendResult{Transaction: *stored, Balances: u.balances(), Created: created}
		return nil
	})
	if err != nil {
		s.metrics.IncAppend(string(input.Type), metrics.OutcomeRejected)
		return nil, err
	}
	s.recordAppend(ctx, result)
	return result, nil
}

// Adjust records an admin correction into HOLD or AVAILABLE.
func (s *service) Adjust(ctx context.Context, input AdjustmentInput) (*AppendResult, error) {
	if strings.TrimSpace(input.Note) == "" {
		return nil, validationError("adjustment note required")
	}
	note := strings.TrimSpace(input.Note)
	return s.Append(ctx, AppendInput{
		VendorID:       input.VendorID,
		Type:           enums.WalletTxnAdjustment,
		Direction:      input.Direction,
		Status:         input.Bucket,
		AmountPaise:    input.AmountPaise,
		IdempotencyKey: input.IdempotencyKey,
		MaturesAt:      input.MaturesAt,
		Meta: Meta{
			Note:  &note,
			Actor: input.Actor,
		},
	})
}

// appendLocked is the idempotency guard plus projector for a single row. A
// recorded key returns the stored row untouched. HOLD debits must be linked
// to a HOLD credit and may not exceed what is left of it.
func (s *service) appendLocked(ctx context.Context, u *vendorUnit, txn *models.WalletTransaction) (*models.WalletTransaction, bool, error) {
	if txn.IdempotencyKey != nil {
		existing, err := u.repo.FindByIdempotencyKey(ctx, txn.VendorID, *txn.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			if err := matchReplay(existing, txn); err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
	}

	if txn.Direction == enums.WalletDirectionDebit && txn.Status == enums.WalletStatusHold {
		if err := s.checkHoldDebit(ctx, u, txn); err != nil {
			return nil, false, err
		}
	}

	if err := u.apply(txn.Status, txn.SignedAmount()); err != nil {
		return nil, false, err
	}
	if err := u.repo.InsertTransaction(ctx, txn); err != nil {
		return nil, false, err
	}
	return txn, true, nil
}

func (s *service) checkHoldDebit(ctx context.Context, u *vendorUnit, txn *models.WalletTransaction) error {
	var credit *models.WalletTransaction
	var err error
	if txn.RelatedTransactionID != nil {
		credit, err = u.repo.FindTransaction(ctx, *txn.RelatedTransactionID)
	} else {
		credit, err = u.repo.FindHoldCreditForOrder(ctx, txn.VendorID, txn.SubOrderID, txn.OrderCode)
	}
	if err != nil {
		return err
	}
	if credit == nil || credit.Status != enums.WalletStatusHold || credit.VendorID != txn.VendorID {
		return insufficientBalance(enums.WalletStatusHold, 0, txn.AmountPaise)
	}
	linked, err := u.repo.SumLinkedHoldDebits(ctx, credit.ID)
	if err != nil {
		return err
	}
	remaining := credit.AmountPaise - linked
	if txn.AmountPaise > remaining {
		return insufficientBalance(enums.WalletStatusHold, remaining, txn.AmountPaise)
	}
	txn.RelatedTransactionID = &credit.ID
	return nil
}

// matchReplay decides whether a stored row satisfies a repeated request.
func matchReplay(existing, requested *models.WalletTransaction) error {
	if existing.Type != requested.Type {
		return invalidShape("idempotency key already used for "+string(existing.Type), map[string]any{
			"storedType":    existing.Type,
			"requestedType": requested.Type,
		})
	}
	if existing.AmountPaise != requested.AmountPaise {
		return idempotencyKeyReused(existing.AmountPaise, requested.AmountPaise)
	}
	return nil
}

func validateAppend(input AppendInput) error {
	if input.VendorID == uuid.Nil {
		return validationError("vendor id required")
	}
	if input.AmountPaise <= 0 {
		return validationError("amount must be positive")
	}
	if strings.TrimSpace(input.IdempotencyKey) == "" {
		return validationError("idempotency key required")
	}
	return validateShape(input.Type, input.Direction, input.Status, input.MaturesAt)
}

func (s *service) newTransaction(input AppendInput) *models.WalletTransaction {
	now := s.now().UTC()
	effective := now
	if input.EffectiveAt != nil {
		effective = input.EffectiveAt.UTC()
	}
	key := strings.TrimSpace(input.IdempotencyKey)
	var maturesAt *time.Time
	if input.MaturesAt != nil {
		m := input.MaturesAt.UTC()
		maturesAt = &m
	}
	return &models.WalletTransaction{
		ID:             uuid.New(),
		VendorID:       input.VendorID,
		Type:           input.Type,
		Direction:      input.Direction,
		AmountPaise:    input.AmountPaise,
		Status:         input.Status,
		OrderCode:      input.Meta.OrderCode,
		SubOrderID:     input.Meta.SubOrderID,
		IdempotencyKey: &key,
		MaturesAt:      maturesAt,
		EffectiveAt:    effective,
		Reference:      input.Meta.Reference,
		Note:           input.Meta.Note,
		Metadata: models.WalletTransactionMetadata{
			SourceEventID: input.Meta.SourceEventID,
			Actor:         input.Meta.Actor,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *service) recordAppend(ctx context.Context, result *AppendResult) {
	outcome := metrics.OutcomeDuplicate
	msg := "wallet.append.duplicate"
	if result.Created {
		outcome = metrics.OutcomeCreated
		msg = "wallet.append.created"
	}
	s.metrics.IncAppend(string(result.Transaction.Type), outcome)
	txn := result.Transaction
	key := ""
	if txn.IdempotencyKey != nil {
		key = *txn.IdempotencyKey
	}
	logCtx := s.logg.WithFields(s.logg.WithAmount(s.logCtx(ctx, txn.VendorID, key), txn.AmountPaise), map[string]any{
		"transaction_id": txn.ID.String(),
		"type":           txn.Type,
		"status":         txn.Status,
	})
	s.logg.Info(logCtx, msg)
}
