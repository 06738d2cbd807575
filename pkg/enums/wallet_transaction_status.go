package enums

import "fmt"

// WalletTransactionStatus is the bucket a ledger row currently counts toward.
// REVERSED and FAILED rows count toward no bucket.
type WalletTransactionStatus string

const (
	WalletStatusHold      WalletTransactionStatus = "HOLD"
	WalletStatusAvailable WalletTransactionStatus = "AVAILABLE"
	WalletStatusPaid      WalletTransactionStatus = "PAID"
	WalletStatusReversed  WalletTransactionStatus = "REVERSED"
	WalletStatusFailed    WalletTransactionStatus = "FAILED"
)

var validWalletTransactionStatuses = []WalletTransactionStatus{
	WalletStatusHold,
	WalletStatusAvailable,
	WalletStatusPaid,
	WalletStatusReversed,
	WalletStatusFailed,
}

// String implements fmt.Stringer.
func (s WalletTransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known WalletTransactionStatus.
func (s WalletTransactionStatus) IsValid() bool {
	for _, candidate := range validWalletTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsBucket reports whether rows in this status contribute to a balance bucket.
func (s WalletTransactionStatus) IsBucket() bool {
	switch s {
	case WalletStatusHold, WalletStatusAvailable, WalletStatusPaid:
		return true
	}
	return false
}

// ParseWalletTransactionStatus converts raw input into a WalletTransactionStatus.
func ParseWalletTransactionStatus(value string) (WalletTransactionStatus, error) {
	for _, candidate := range validWalletTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction status %q", value)
}
