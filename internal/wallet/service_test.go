package wallet

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-wallet/pkg/db/models"
	"github.com/angelmondragon/packfinderz-wallet/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-wallet/pkg/errors"
	"github.com/angelmondragon/packfinderz-wallet/pkg/logger"
	"github.com/angelmondragon/packfinderz-wallet/pkg/outbox"
)

const day = 24 * time.Hour

func TestWalletLifecycleWalkthrough(t *testing.T) {
	h := newWalletHarness(t)
	ctx := context.Background()
	vendorID := h.vendor(t, "Acme Traders")
	matures := h.clock.now.Add(7 * day)

	deliver := CreditOnDeliveryInput{
		VendorID:       vendorID,
		OrderCode:      "ORD1",
		SubOrderID:     "ORD1-A",
		AmountPaise:    100000,
		MaturesAt:      &matures,
		IdempotencyKey: "k1",
	}
	first, err := h.svc.CreditOnDelivery(ctx, deliver)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, Balances{HoldPaise: 100000}, first.Balances)

	replay, err := h.svc.CreditOnDelivery(ctx, deliver)
	require.NoError(t, err)
	assert.False(t, replay.Created)
	assert.Equal(t, first.Transaction.ID, replay.Transaction.ID)
	assert.Equal(t, Balances{HoldPaise: 100000}, h.balances(t, vendorID))

	h.clock.Advance(8 * day)
	unlocked, err := h.svc.Unlock(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, unlocked.Promoted)
	assert.Equal(t, []uuid.UUID{vendorID}, unlocked.VendorsTouched)
	assert.Equal(t, Balances{AvailablePaise: 100000}, h.balances(t, vendorID))

	released, err := h.svc.Release(ctx, ReleaseInput{
		VendorID:       vendorID,
		AmountPaise:    60000,
		Method:         enums.PayoutMethodUPI,
		IdempotencyKey: "p1",
	})
	require.NoError(t, err)
	assert.True(t, released.Created)
	assert.Equal(t, Balances{AvailablePaise: 40000, PaidPaise: 60000}, released.Balances)

	failed, err := h.svc.Fail(ctx, FailInput{
		VendorID:       vendorID,
		AmountPaise:    60000,
		Method:         enums.PayoutMethodUPI,
		Reason:         "beneficiary account closed",
		IdempotencyKey: "f1",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.WalletTxnPayoutFailed, failed.Transaction.Type)
	assert.Equal(t, enums.WalletStatusFailed, failed.Transaction.Status)
	assert.Equal(t, Balances{AvailablePaise: 100000}, failed.Balances)

	_, err = h.svc.Release(ctx, ReleaseInput{
		VendorID:       vendorID,
		AmountPaise:    120000,
		Method:         enums.PayoutMethodUPI,
		IdempotencyKey: "p2",
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientBalance))
	assert.Equal(t, Balances{AvailablePaise: 100000}, h.balances(t, vendorID))

	_, err = h.svc.DebitOnCancelOrReturn(ctx, DebitInput{
		VendorID:       vendorID,
		Type:           enums.WalletTxnCancelDeduct,
		OrderCode:      "ORD1",
		SubOrderID:     "ORD1-A",
		AmountPaise:    100000,
		IdempotencyKey: "k1",
	})
	require.ErrorIs(t, err, ErrInvalidShape)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidShape))
	assert.Equal(t, Balances{AvailablePaise: 100000}, h.balances(t, vendorID))

	h.requireConsistent(t, vendorID)
	assert.Equal(t, int64(1), h.countOutbox(t, string(enums.EventWalletFundsUnlocked)))
	assert.Equal(t, int64(1), h.countOutbox(t, string(enums.EventWalletPayoutReleased)))
	assert.Equal(t, int64(1), h.countOutbox(t, string(enums.EventWalletPayoutFailed)))
}

func TestConcurrentDuplicateAppendsApplyOnce(t *testing.T) {
	h := newWalletHarness(t)
	vendorID := h.vendor(t, "Concurrent Co")
	matures := h.clock.now.Add(7 * day)

	const workers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.svc.CreditOnDelivery(context.Background(), CreditOnDeliveryInput{
				VendorID:       vendorID,
				SubOrderID:     "SO-1",
				AmountPaise:    2500,
				MaturesAt:      &matures,
				IdempotencyKey: "order_delivered:SO-1",
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if res.Created {
				created++
			}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 1, created)
	assert.Equal(t, int64(1), h.countTransactions(t, vendorID))
	assert.Equal(t, Balances{HoldPaise: 2500}, h.balances(t, vendorID))
	h.requireConsistent(t, vendorID)
}

// staleKeyRepo reports a miss for the next few idempotency lookups, which is
// what a transaction sees when a concurrent writer commits the same key after
// its read.
type staleKeyRepo struct {
	Repository
	misses  *atomic.Int32
	lookups *atomic.Int32
}

func (r staleKeyRepo) WithTx(tx *gorm.DB) Repository {
	return staleKeyRepo{Repository: r.Repository.WithTx(tx), misses: r.misses, lookups: r.lookups}
}

func (r staleKeyRepo) FindByIdempotencyKey(ctx context.Context, vendorID uuid.UUID, key string) (*models.WalletTransaction, error) {
	r.lookups.Add(1)
	if r.misses.Add(-1) >= 0 {
		return nil, nil
	}
	return r.Repository.FindByIdempotencyKey(ctx, vendorID, key)
}

func TestDuplicateKeyLosingUniqueIndexReplays(t *testing.T) {
	var misses, lookups atomic.Int32
	h := newWalletHarnessWithRepo(t, func(repo Repository) Repository {
		return staleKeyRepo{Repository: repo, misses: &misses, lookups: &lookups}
	})
	vendorID := h.vendor(t, "Race Co")
	matures := h.clock.now.Add(7 * day)
	input := CreditOnDeliveryInput{
		VendorID:       vendorID,
		SubOrderID:     "SO-9",
		AmountPaise:    1000,
		MaturesAt:      &matures,
		IdempotencyKey: "order_delivered:SO-9",
	}

	first, err := h.svc.CreditOnDelivery(context.Background(), input)
	require.NoError(t, err)
	require.True(t, first.Created)

	misses.Store(1)
	lookups.Store(0)
	replay, err := h.svc.CreditOnDelivery(context.Background(), input)
	require.NoError(t, err)

	assert.False(t, replay.Created)
	assert.Equal(t, first.Transaction.ID, replay.Transaction.ID)
	assert.Equal(t, int32(2), lookups.Load(), "the unique index rejection should rerun the unit")
	assert.Equal(t, int64(1), h.countTransactions(t, vendorID))
	assert.Equal(t, Balances{HoldPaise: 1000}, h.balances(t, vendorID))
	h.requireConsistent(t, vendorID)
}

func TestConcurrentReleasesNeverOverdraw(t *testing.T) {
	h := newWalletHarness(t)
	ctx := context.Background()
	vendorID := h.vendor(t, "Payout Co")
	_, err := h.svc.Adjust(ctx, AdjustmentInput{
		VendorID:       vendorID,
		Direction:      enums.WalletDirectionCredit,
		Bucket:         enums.WalletStatusAvailable,
		AmountPaise:    10000,
		Note:           "opening balance",
		IdempotencyKey: "adj-1",
	})
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.Release(ctx, ReleaseInput{
				VendorID:       vendorID,
				AmountPaise:    3000,
				Method:         enums.PayoutMethodBank,
				IdempotencyKey: uuid.NewString(),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientBalance)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, Balances{AvailablePaise: 1000, PaidPaise: 9000}, h.balances(t, vendorID))
	h.requireConsistent(t, vendorID)
}

func TestIdempotencyKeyReusedWithDifferentAmount(t *testing.T) {
	h := newWalletHarness(t)
	vendorID := h.vendor(t, "Acme")
	h.credit(t, vendorID, "SO-9", 5000, 7*day)

	matures := h.clock.now.Add(7 * day)
	_, err := h.svc.CreditOnDelivery(context.Background(), CreditOnDeliveryInput{
		VendorID:       vendorID,
		SubOrderID:     "SO-9",
		AmountPaise:    7000,
		MaturesAt:      &matures,
		IdempotencyKey: "order_delivered:SO-9",
	})
	require.ErrorIs(t, err, ErrIdempotencyKeyReused)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIdempotency))
	assert.Equal(t, Balances{HoldPaise: 5000}, h.balances(t, vendorID))
}

func TestCreditOnDeliveryDefaultsMaturityToReturnWindow(t *testing.T) {
	h := newWalletHarness(t)
	vendorID := h.vendor(t, "Acme")
	delivered := h.clock.now.Add(-2 * day)

	res, err := h.svc.CreditOnDelivery(context.Background(), CreditOnDeliveryInput{
		VendorID:       vendorID,
		SubOrderID:     "SO-1",
		AmountPaise:    900,
		DeliveredAt:    &delivered,
		IdempotencyKey: "order_delivered:SO-1",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Transaction.MaturesAt)
	assert.True(t, res.Transaction.MaturesAt.Equal(delivered.Add(7*day)))
	assert.True(t, res.Transaction.EffectiveAt.Equal(delivered))
}

func TestDeductionWhileHoldIsLinkedAndPromotedWithCredit(t *testing.T) {
	h := newWalletHarness(t)
	ctx := context.Background()
	vendorID := h.vendor(t, "Acme")
	credit := h.credit(t, vendorID, "SO-1", 10000, 7*day)

	deduct, err := h.svc.DebitOnCancelOrReturn(ctx, DebitInput{
		VendorID:       vendorID,
		Type:           enums.WalletTxnReturnDeduct,
		SubOrderID:     "SO-1",
		AmountPaise:    4000,
		IdempotencyKey: "return_approved:R-1",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.WalletStatusHold, deduct.Transaction.Status)
	require.NotNil(t, deduct.Transaction.RelatedTransactionID)
	assert.Equal(t, credit.Transaction.ID, *deduct.Transaction.RelatedTransactionID)
	assert.Equal(t, Balances{HoldPaise: 6000}, deduct.Balances)

	_, err = h.svc.DebitOnCancelOrReturn(ctx, DebitInput{
		VendorID:       vendorID,
		Type:           enums.WalletTxnCancelDeduct,
		SubOrderID:     "SO-1",
		AmountPaise:    7000,
		IdempotencyKey: "order_canceled:SO-1",
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, Balances{HoldPaise: 6000}, h.balances(t, vendorID))

	h.clock.Advance(7 * day)
	res, err := h.svc.Unlock(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Promoted)
	assert.Equal(t, int64(6000), res.PromotedPaise)
	assert.Equal(t, Balances{AvailablePaise: 6000}, h.balances(t, vendorID))

	var statuses []enums.WalletTransactionStatus
	require.NoError(t, h.conn.Model(&models.WalletTransaction{}).
		Where("vendor_id = ?", vendorID).Pluck("status", &statuses).Error)
	assert.ElementsMatch(t, []enums.WalletTransactionStatus{enums.WalletStatusAvailable, enums.WalletStatusAvailable}, statuses)
	h.requireConsistent(t, vendorID)
}

func TestDeductionAfterUnlockDebitsAvailable(t *testing.T) {
	h := newWalletHarness(t)
	ctx := context.Background()
	vendorID := h.vendor(t, "Acme")
	h.credit(t, vendorID, "SO-1", 5000, day)
	h.clock.Advance(2 * day)
	_, err := h.svc.Unlock(ctx, 0)
	require.NoError(t, err)

	res, err := h.svc.DebitOnCancelOrReturn(ctx, DebitInput{
		VendorID:       vendorID,
		Type:           enums.WalletTxnReturnDeduct,
		OrderCode:      "ORD-SO-1",
		AmountPaise:    2000,
		IdempotencyKey: "return_approved:R-7",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.WalletStatusAvailable, res.Transaction.Status)
	assert.Equal(t, Balances{AvailablePaise: 3000}, res.Balances)

	_, err = h.svc.DebitOnCancelOrReturn(ctx, DebitInput{
		VendorID:       vendorID,
		Type:           enums.WalletTxnReturnDeduct,
		SubOrderID:     "SO-1",
		AmountPaise:    3001,
		IdempotencyKey: "return_approved:R-8",
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, Balances{AvailablePaise: 3000}, h.balances(t, vendorID))
	h.requireConsistent(t, vendorID)
}

func TestUnlockPromotesOldestFirstWithinLimit(t *testing.T) {
	h := newWalletHarness(t)
	ctx := context.Background()
	a := h.vendor(t, "Alpha")
	b := h.vendor(t, "Beta")

	h.credit(t, a, "SO-A1", 100, 3*day)
	h.credit(t, b, "SO-B1", 200, 1*day)
	h.credit(t, a, "SO-A2", 300, 2*day)
	h.credit(t, b, "SO-B2", 400, 30*day)

	h.clock.Advance(5 * day)

	res, err := h.svc.Unlock(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Promoted)
	assert.Equal(t, int64(500), res.PromotedPaise)
	assert.Equal(t, []uuid.UUID{b, a}, res.VendorsTouched)
	assert.Equal(t, Balances{HoldPaise: 100, AvailablePaise: 300}, h.balances(t, a))
	assert.Equal(t, Balances{HoldPaise: 400, AvailablePaise: 200}, h.balances(t, b))

	res, err = h.svc.Unlock(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Promoted)
	assert.Equal(t, []uuid.UUID{a}, res.VendorsTouched)

	res, err = h.svc.Unlock(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Promoted)
	assert.Empty(t, res.VendorsTouched)

	assert.Equal(t, Balances{AvailablePaise: 400}, h.balances(t, a))
	assert.Equal(t, Balances{HoldPaise: 400, AvailablePaise: 200}, h.balances(t, b))
	h.requireConsistent(t, a)
	h.requireConsistent(t, b)
	assert.Equal(t, int64(3), h.countOutbox(t, string(enums.EventWalletFundsUnlocked)))
}

func TestUnlockStopsOnCanceledContext(t *testing.T) {
	h := newWalletHarness(t)
	vendorID := h.vendor(t, "Alpha")
	h.credit(t, vendorID, "SO-1", 100, day)
	h.clock.Advance(2 * day)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := h.svc.Unlock(ctx, 10)
	require.Error(t, err)
	if res != nil {
		assert.Equal(t, 0, res.Promoted)
	}

	res, err = h.svc.Unlock(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Promoted)
}

func TestReleaseReplayReturnsOriginal(t *testing.T) {
	h := newWalletHarness(t)
	ctx := context.Background()
	vendorID := h.vendor(t, "Acme")
	_, err := h.svc.Adjust(ctx, AdjustmentInput{
		VendorID:       vendorID,
		Direction:      enums.WalletDirectionCredit,
		Bucket:         enums.WalletStatusAvailable,
		AmountPaise:    5000,
		Note:           "manual top up",
		IdempotencyKey: "adj-1",
	})
	require.NoError(t, err)

	ref := "UTR123"
	input := ReleaseInput{
		VendorID:       vendorID,
		AmountPaise:    2000,
		Method:         enums.PayoutMethodBank,
		Reference:      &ref,
		IdempotencyKey: "p1",
	}
	first, err := h.svc.Release(ctx, input)
	require.NoError(t, err)
	second, err := h.svc.Release(ctx, input)
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, Balances{AvailablePaise: 3000, PaidPaise: 2000}, h.balances(t, vendorID))
	assert.Equal(t, int64(3), h.countTransactions(t, vendorID))
	assert.Equal(t, int64(1), h.countOutbox(t, string(enums.EventWalletPayoutReleased)))
}

func TestFailRequiresMatchingReservation(t *testing.T) {
	h := newWalletHarness(t)
	ctx := context.Background()
	vendorID := h.vendor(t, "Acme")
	_, err := h.svc.Adjust(ctx, AdjustmentInput{
		VendorID:       vendorID,
		Direction:      enums.WalletDirectionCredit,
		Bucket:         enums.WalletStatusAvailable,
		AmountPaise:    5000,
		Note:           "opening balance",
		IdempotencyKey: "adj-1",
	})
	require.NoError(t, err)

	_, err = h.svc.Fail(ctx, FailInput{
		VendorID:       vendorID,
		AmountPaise:    1000,
		Method:         enums.PayoutMethodUPI,
		Reason:         "bounced",
		IdempotencyKey: "f0",
	})
	require.ErrorIs(t, err, ErrNoMatchingReservation)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNoMatchingReservation))

	refA, refB := "UTR-A", "UTR-B"
	_, err = h.svc.Release(ctx, ReleaseInput{VendorID: vendorID, AmountPaise: 1000, Method: enums.PayoutMethodUPI, Reference: &refA, IdempotencyKey: "p1"})
	require.NoError(t, err)
	_, err = h.svc.Release(ctx, ReleaseInput{VendorID: vendorID, AmountPaise: 1000, Method: enums.PayoutMethodUPI, Reference: &refB, IdempotencyKey: "p2"})
	require.NoError(t, err)

	_, err = h.svc.Fail(ctx, FailInput{VendorID: vendorID, AmountPaise: 1500, Method: enums.PayoutMethodUPI, Reason: "bounced", IdempotencyKey: "f1"})
	require.ErrorIs(t, err, ErrNoMatchingReservation)

	failInput := FailInput{VendorID: vendorID, AmountPaise: 1000, Method: enums.PayoutMethodUPI, Reference: &refA, Reason: "bounced", IdempotencyKey: "f2"}
	failed, err := h.svc.Fail(ctx, failInput)
	require.NoError(t, err)
	assert.Equal(t, Balances{AvailablePaise: 4000, PaidPaise: 1000}, failed.Balances)

	var reversed []models.WalletTransaction
	require.NoError(t, h.conn.Where("vendor_id = ? AND status = ?", vendorID, enums.WalletStatusReversed).Find(&reversed).Error)
	require.Len(t, reversed, 2)
	for _, row := range reversed {
		require.NotNil(t, row.Reference)
		assert.Equal(t, refA, *row.Reference)
	}

	replay, err := h.svc.Fail(ctx, failInput)
	require.NoError(t, err)
	assert.False(t, replay.Created)
	assert.Equal(t, failed.Transaction.ID, replay.Transaction.ID)

	_, err = h.svc.Fail(ctx, FailInput{VendorID: vendorID, AmountPaise: 1000, Method: enums.PayoutMethodUPI, Reference: &refA, Reason: "bounced again", IdempotencyKey: "f3"})
	require.ErrorIs(t, err, ErrNoMatchingReservation)

	assert.Equal(t, Balances{AvailablePaise: 4000, PaidPaise: 1000}, h.balances(t, vendorID))
	h.requireConsistent(t, vendorID)
}

func TestAppendRejectsInvalidShapesBeforeWriting(t *testing.T) {
	h := newWalletHarness(t)
	vendorID := h.vendor(t, "Acme")
	matures := h.clock.now.Add(day)

	cases := []struct {
		name  string
		input AppendInput
	}{
		{"hold to available is never appended", AppendInput{Type: enums.WalletTxnHoldToAvailable, Direction: enums.WalletDirectionCredit, Status: enums.WalletStatusAvailable}},
		{"payout rows come from release", AppendInput{Type: enums.WalletTxnPayoutReleased, Direction: enums.WalletDirectionDebit, Status: enums.WalletStatusAvailable}},
		{"delivery credit must be hold", AppendInput{Type: enums.WalletTxnDeliveredHoldCredit, Direction: enums.WalletDirectionCredit, Status: enums.WalletStatusAvailable}},
		{"delivery credit needs maturity", AppendInput{Type: enums.WalletTxnDeliveredHoldCredit, Direction: enums.WalletDirectionCredit, Status: enums.WalletStatusHold}},
		{"deduction must debit", AppendInput{Type: enums.WalletTxnCancelDeduct, Direction: enums.WalletDirectionCredit, Status: enums.WalletStatusAvailable}},
		{"adjustment debit cannot hit hold", AppendInput{Type: enums.WalletTxnAdjustment, Direction: enums.WalletDirectionDebit, Status: enums.WalletStatusHold}},
		{"maturity only on hold credits", AppendInput{Type: enums.WalletTxnAdjustment, Direction: enums.WalletDirectionCredit, Status: enums.WalletStatusAvailable, MaturesAt: &matures}},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.input
			in.VendorID = vendorID
			in.AmountPaise = 100
			in.IdempotencyKey = "shape-" + string(rune('a'+i))
			_, err := h.svc.Append(context.Background(), in)
			require.ErrorIs(t, err, ErrInvalidShape)
		})
	}
	assert.Equal(t, int64(0), h.countTransactions(t, vendorID))
}

func TestAppendValidatesInput(t *testing.T) {
	h := newWalletHarness(t)
	vendorID := h.vendor(t, "Acme")
	base := AppendInput{
		VendorID:       vendorID,
		Type:           enums.WalletTxnAdjustment,
		Direction:      enums.WalletDirectionCredit,
		Status:         enums.WalletStatusAvailable,
		AmountPaise:    100,
		IdempotencyKey: "adj",
	}

	zero := base
	zero.AmountPaise = 0
	_, err := h.svc.Append(context.Background(), zero)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	noKey := base
	noKey.IdempotencyKey = "  "
	_, err = h.svc.Append(context.Background(), noKey)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	unknown := base
	unknown.VendorID = uuid.New()
	_, err = h.svc.Append(context.Background(), unknown)
	require.ErrorIs(t, err, ErrVendorNotFound)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreditPastInt64RangeIsRejected(t *testing.T) {
	h := newWalletHarness(t)
	vendorID := h.vendor(t, "Whale Co")
	h.credit(t, vendorID, "SO-big", math.MaxInt64-5, 7*day)

	matures := h.clock.now.Add(7 * day)
	_, err := h.svc.CreditOnDelivery(context.Background(), CreditOnDeliveryInput{
		VendorID:       vendorID,
		SubOrderID:     "SO-more",
		AmountPaise:    100,
		MaturesAt:      &matures,
		IdempotencyKey: "order_delivered:SO-more",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.False(t, errors.Is(err, ErrInsufficientBalance))

	assert.Equal(t, Balances{HoldPaise: math.MaxInt64 - 5}, h.balances(t, vendorID))
	assert.Equal(t, int64(1), h.countTransactions(t, vendorID))
}

func TestAdjustmentDebitCannotOverdraw(t *testing.T) {
	h := newWalletHarness(t)
	ctx := context.Background()
	vendorID := h.vendor(t, "Acme")
	_, err := h.svc.Adjust(ctx, AdjustmentInput{
		VendorID:       vendorID,
		Direction:      enums.WalletDirectionCredit,
		Bucket:         enums.WalletStatusAvailable,
		AmountPaise:    500,
		Note:           "goodwill",
		IdempotencyKey: "adj-1",
	})
	require.NoError(t, err)

	_, err = h.svc.Adjust(ctx, AdjustmentInput{
		VendorID:       vendorID,
		Direction:      enums.WalletDirectionDebit,
		Bucket:         enums.WalletStatusAvailable,
		AmountPaise:    600,
		Note:           "chargeback",
		IdempotencyKey: "adj-2",
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = h.svc.Adjust(ctx, AdjustmentInput{
		VendorID:       vendorID,
		Direction:      enums.WalletDirectionDebit,
		Bucket:         enums.WalletStatusAvailable,
		AmountPaise:    500,
		IdempotencyKey: "adj-3",
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	assert.Equal(t, Balances{AvailablePaise: 500}, h.balances(t, vendorID))
	h.requireConsistent(t, vendorID)
}

func TestReconcileReportsDrift(t *testing.T) {
	h := newWalletHarness(t)
	vendorID := h.vendor(t, "Acme")
	h.credit(t, vendorID, "SO-1", 1000, day)
	h.requireConsistent(t, vendorID)

	require.NoError(t, h.conn.Exec("UPDATE wallet_accounts SET hold_paise = 1500 WHERE vendor_id = ?", vendorID).Error)
	report, err := h.svc.Reconcile(context.Background(), vendorID)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.Equal(t, int64(500), report.Drift.HoldPaise)
	assert.Equal(t, int64(1000), report.Ledger.HoldPaise)
}

type conflictingRunner struct {
	calls int
}

func (r *conflictingRunner) WithTx(context.Context, func(tx *gorm.DB) error) error {
	r.calls++
	return errVersionConflict
}

func (r *conflictingRunner) ReadTx(context.Context, func(tx *gorm.DB) error) error {
	return nil
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error { return nil }

func TestConflictRetriesAreBounded(t *testing.T) {
	runner := &conflictingRunner{}
	svc, err := NewService(ServiceParams{
		Repo:        NewRepository(nil),
		DB:          runner,
		Outbox:      noopEmitter{},
		Logger:      logger.New(logger.Options{ServiceName: "wallet-test", Output: io.Discard}),
		MaxAttempts: 3,
	})
	require.NoError(t, err)

	_, err = svc.Release(context.Background(), ReleaseInput{
		VendorID:       uuid.New(),
		AmountPaise:    100,
		Method:         enums.PayoutMethodManual,
		IdempotencyKey: "p1",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConcurrentModification))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConcurrentModification))
	assert.Equal(t, 3, runner.calls)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
