package enums

import "fmt"

// OutboxAggregateType maps to outbox_events.aggregate_type.
type OutboxAggregateType string

const (
	AggregateVendorWallet      OutboxAggregateType = "vendor_wallet"
	AggregateWalletTransaction OutboxAggregateType = "wallet_transaction"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateVendorWallet,
	AggregateWalletTransaction,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to outbox_events.event_type.
type OutboxEventType string

const (
	EventWalletPayoutReleased OutboxEventType = "wallet_payout_released"
	EventWalletPayoutFailed   OutboxEventType = "wallet_payout_failed"
	EventWalletFundsUnlocked  OutboxEventType = "wallet_funds_unlocked"
)

var validOutboxEventTypes = []OutboxEventType{
	EventWalletPayoutReleased,
	EventWalletPayoutFailed,
	EventWalletFundsUnlocked,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// Aggregate returns the aggregate an event type is recorded against.
// Payout events hang off the wallet transaction; unlocks off the wallet.
func (e OutboxEventType) Aggregate() (OutboxAggregateType, bool) {
	switch e {
	case EventWalletPayoutReleased, EventWalletPayoutFailed:
		return AggregateWalletTransaction, true
	case EventWalletFundsUnlocked:
		return AggregateVendorWallet, true
	}
	return "", false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
