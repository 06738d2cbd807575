package enums

import "fmt"

// WalletDirection carries the sign a ledger row applies to its bucket.
type WalletDirection string

const (
	WalletDirectionCredit WalletDirection = "CREDIT"
	WalletDirectionDebit  WalletDirection = "DEBIT"
)

var validWalletDirections = []WalletDirection{
	WalletDirectionCredit,
	WalletDirectionDebit,
}

// String implements fmt.Stringer.
func (d WalletDirection) String() string {
	return string(d)
}

// IsValid reports whether the value is a known WalletDirection.
func (d WalletDirection) IsValid() bool {
	for _, candidate := range validWalletDirections {
		if candidate == d {
			return true
		}
	}
	return false
}

// Sign returns +1 for credits and -1 for debits.
func (d WalletDirection) Sign() int64 {
	if d == WalletDirectionDebit {
		return -1
	}
	return 1
}

// ParseWalletDirection converts raw input into a WalletDirection.
func ParseWalletDirection(value string) (WalletDirection, error) {
	for _, candidate := range validWalletDirections {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet direction %q", value)
}
