package wallet

import (
	"time"

	"github.com/angelmondragon/packfinderz-wallet/pkg/enums"
)

type shapeKey struct {
	txnType   enums.WalletTransactionType
	direction enums.WalletDirection
	status    enums.WalletTransactionStatus
}

// allowedShapes lists every (type, direction, initial status) a ledger row may
// be created with. HOLD_TO_AVAILABLE is absent: unlock promotes rows in place.
var allowedShapes = map[shapeKey]struct{}{
	{enums.WalletTxnDeliveredHoldCredit, enums.WalletDirectionCredit, enums.WalletStatusHold}: {},
	{enums.WalletTxnCancelDeduct, enums.WalletDirectionDebit, enums.WalletStatusHold}:         {},
	{enums.WalletTxnCancelDeduct, enums.WalletDirectionDebit, enums.WalletStatusAvailable}:    {},
	{enums.WalletTxnReturnDeduct, enums.WalletDirectionDebit, enums.WalletStatusHold}:         {},
	{enums.WalletTxnReturnDeduct, enums.WalletDirectionDebit, enums.WalletStatusAvailable}:    {},
	{enums.WalletTxnAdjustment, enums.WalletDirectionCredit, enums.WalletStatusHold}:          {},
	{enums.WalletTxnAdjustment, enums.WalletDirectionCredit, enums.WalletStatusAvailable}:     {},
	{enums.WalletTxnAdjustment, enums.WalletDirectionDebit, enums.WalletStatusAvailable}:      {},
	{enums.WalletTxnPayoutReleased, enums.WalletDirectionDebit, enums.WalletStatusAvailable}:  {},
	{enums.WalletTxnPayoutReleased, enums.WalletDirectionCredit, enums.WalletStatusPaid}:      {},
	{enums.WalletTxnPayoutFailed, enums.WalletDirectionCredit, enums.WalletStatusFailed}:      {},
}

// validateShape rejects combinations outside allowedShapes. maturesAt is
// required on HOLD credits and refused everywhere else.
func validateShape(txnType enums.WalletTransactionType, direction enums.WalletDirection, status enums.WalletTransactionStatus, maturesAt *time.Time) error {
	details := map[string]any{
		"type":      txnType,
		"direction": direction,
		"status":    status,
	}
	if !txnType.IsValid() || !direction.IsValid() || !status.IsValid() {
		return invalidShape("unknown transaction type, direction or status", details)
	}
	if _, ok := allowedShapes[shapeKey{txnType, direction, status}]; !ok {
		return invalidShape(string(txnType)+" cannot be a "+string(direction)+" into "+string(status), details)
	}
	holdCredit := direction == enums.WalletDirectionCredit && status == enums.WalletStatusHold
	if holdCredit && maturesAt == nil {
		return invalidShape("HOLD credits require maturesAt", details)
	}
	if !holdCredit && maturesAt != nil {
		return invalidShape("maturesAt is only valid on HOLD credits", details)
	}
	return nil
}
