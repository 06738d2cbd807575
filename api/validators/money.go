package validators

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/packfinderz-wallet/pkg/errors"
)

var paisePerRupee = decimal.NewFromInt(100)

// RupeesToPaise converts a positive rupee amount into paise. Amounts with
// fractional paise are rejected rather than rounded.
func RupeesToPaise(field string, amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive").WithDetails(map[string]any{"field": field})
	}
	paise := amount.Mul(paisePerRupee)
	if !paise.IsInteger() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount cannot have more than two decimal places").WithDetails(map[string]any{"field": field})
	}
	if paise.GreaterThan(decimal.NewFromInt(maxPaise)) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount too large").WithDetails(map[string]any{"field": field})
	}
	return paise.IntPart(), nil
}

// PaiseToRupees renders paise as a two-decimal rupee string.
func PaiseToRupees(paise int64) string {
	return decimal.New(paise, -2).StringFixed(2)
}

const maxPaise = int64(1) << 53
