package enums

import "fmt"

// WalletTransactionType maps to the wallet_transactions.type column.
type WalletTransactionType string

const (
	WalletTxnDeliveredHoldCredit WalletTransactionType = "DELIVERED_HOLD_CREDIT"
	WalletTxnHoldToAvailable     WalletTransactionType = "HOLD_TO_AVAILABLE"
	WalletTxnPayoutReleased      WalletTransactionType = "PAYOUT_RELEASED"
	WalletTxnPayoutFailed        WalletTransactionType = "PAYOUT_FAILED"
	WalletTxnCancelDeduct        WalletTransactionType = "CANCEL_DEDUCT"
	WalletTxnReturnDeduct        WalletTransactionType = "RETURN_DEDUCT"
	WalletTxnAdjustment          WalletTransactionType = "ADJUSTMENT"
)

var validWalletTransactionTypes = []WalletTransactionType{
	WalletTxnDeliveredHoldCredit,
	WalletTxnHoldToAvailable,
	WalletTxnPayoutReleased,
	WalletTxnPayoutFailed,
	WalletTxnCancelDeduct,
	WalletTxnReturnDeduct,
	WalletTxnAdjustment,
}

// String implements fmt.Stringer.
func (t WalletTransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical wallet transaction types.
func (t WalletTransactionType) IsValid() bool {
	for _, candidate := range validWalletTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsDeduction reports whether the type claws back money earned on an order.
func (t WalletTransactionType) IsDeduction() bool {
	return t == WalletTxnCancelDeduct || t == WalletTxnReturnDeduct
}

// ParseWalletTransactionType converts raw input into WalletTransactionType.
func ParseWalletTransactionType(value string) (WalletTransactionType, error) {
	for _, candidate := range validWalletTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction type %q", value)
}
