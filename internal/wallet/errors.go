package wallet

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/packfinderz-wallet/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-wallet/pkg/errors"
)

// Sentinels are wrapped in typed pkg/errors values, so both errors.Is and
// pkgerrors.As work on anything the service returns.
var (
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInvalidShape           = errors.New("invalid transaction shape")
	ErrNoMatchingReservation  = errors.New("no matching reservation")
	ErrVendorNotFound         = errors.New("vendor not found")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrIdempotencyKeyReused   = errors.New("idempotency key reused")

	errVersionConflict = errors.New("wallet account version changed")
)

func insufficientBalance(bucket enums.WalletTransactionStatus, balance, amount int64) error {
	return pkgerrors.Wrap(pkgerrors.CodeInsufficientBalance, ErrInsufficientBalance,
		fmt.Sprintf("%s balance %d is below %d", bucket, balance, amount)).
		WithDetails(map[string]any{
			"bucket":       bucket,
			"balancePaise": balance,
			"amountPaise":  amount,
		})
}

func bucketOverflow(bucket enums.WalletTransactionStatus, balance, amount int64) error {
	return pkgerrors.New(pkgerrors.CodeValidation,
		fmt.Sprintf("%s balance %d cannot absorb %d", bucket, balance, amount)).
		WithDetails(map[string]any{
			"bucket":       bucket,
			"balancePaise": balance,
			"amountPaise":  amount,
		})
}

func invalidShape(msg string, details map[string]any) error {
	return pkgerrors.Wrap(pkgerrors.CodeInvalidShape, ErrInvalidShape, msg).WithDetails(details)
}

func noMatchingReservation(vendorID uuid.UUID, amount int64, reference *string) error {
	details := map[string]any{"vendorId": vendorID, "amountPaise": amount}
	if reference != nil {
		details["reference"] = *reference
	}
	return pkgerrors.Wrap(pkgerrors.CodeNoMatchingReservation, ErrNoMatchingReservation,
		"no released payout matches this failure").WithDetails(details)
}

func vendorNotFound(vendorID uuid.UUID) error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrVendorNotFound, "vendor "+vendorID.String()+" not found")
}

func idempotencyKeyReused(existing int64, requested int64) error {
	return pkgerrors.Wrap(pkgerrors.CodeIdempotency, ErrIdempotencyKeyReused,
		"idempotency key already used with a different amount").
		WithDetails(map[string]any{"storedAmountPaise": existing, "requestedAmountPaise": requested})
}

func concurrentModification(attempts int, cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeConcurrentModification,
		multierr.Append(ErrConcurrentModification, cause),
		fmt.Sprintf("wallet update conflicted after %d attempts", attempts))
}

func validationError(msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg)
}

func dependencyError(err error, msg string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
