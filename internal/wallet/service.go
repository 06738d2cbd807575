package wallet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-wallet/pkg/db"
	"github.com/angelmondragon/packfinderz-wallet/pkg/db/models"
	"github.com/angelmondragon/packfinderz-wallet/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-wallet/pkg/errors"
	"github.com/angelmondragon/packfinderz-wallet/pkg/logger"
	"github.com/angelmondragon/packfinderz-wallet/pkg/metrics"
	"github.com/angelmondragon/packfinderz-wallet/pkg/outbox"
)

const (
	defaultMaxAttempts     = 5
	defaultUnlockBatchSize = 200
	defaultUnlockBatchMax  = 1000
	defaultReturnWindow    = 7 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	ReadTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the vendor wallet engine: ledger appends, unlock, payouts and reads.
type Service interface {
	Append(ctx context.Context, input AppendInput) (*AppendResult, error)
	CreditOnDelivery(ctx context.Context, input CreditOnDeliveryInput) (*AppendResult, error)
	DebitOnCancelOrReturn(ctx context.Context, input DebitInput) (*AppendResult, error)
	Adjust(ctx context.Context, input AdjustmentInput) (*AppendResult, error)

	Unlock(ctx context.Context, limit int) (*UnlockResult, error)

	Release(ctx context.Context, input ReleaseInput) (*PayoutResult, error)
	Fail(ctx context.Context, input FailInput) (*PayoutResult, error)

	GetBalances(ctx context.Context, vendorID uuid.UUID) (Balances, error)
	Reconcile(ctx context.Context, vendorID uuid.UUID) (*ReconcileReport, error)
	ListVendors(ctx context.Context, query VendorListQuery) (*VendorList, error)
	GetVendorWallet(ctx context.Context, query VendorWalletQuery) (*VendorWallet, error)

	UpsertVendor(ctx context.Context, vendorID uuid.UUID, name string) error
}

// ServiceParams wires the wallet service.
type ServiceParams struct {
	Repo            Repository
	DB              txRunner
	Outbox          outboxEmitter
	Logger          *logger.Logger
	Metrics         *metrics.WalletMetrics
	Now             func() time.Time
	MaxAttempts     int
	ReturnWindow    time.Duration
	UnlockBatchSize int
	UnlockBatchMax  int
}

type service struct {
	repo            Repository
	db              txRunner
	outbox          outboxEmitter
	logg            *logger.Logger
	metrics         *metrics.WalletMetrics
	now             func() time.Time
	maxAttempts     int
	returnWindow    time.Duration
	unlockBatchSize int
	unlockBatchMax  int
}

// NewService builds the wallet service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	s := &service{
		repo:            params.Repo,
		db:              params.DB,
		outbox:          params.Outbox,
		logg:            params.Logger,
		metrics:         params.Metrics,
		now:             params.Now,
		maxAttempts:     params.MaxAttempts,
		returnWindow:    params.ReturnWindow,
		unlockBatchSize: params.UnlockBatchSize,
		unlockBatchMax:  params.UnlockBatchMax,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.returnWindow <= 0 {
		s.returnWindow = defaultReturnWindow
	}
	if s.unlockBatchMax <= 0 {
		s.unlockBatchMax = defaultUnlockBatchMax
	}
	if s.unlockBatchSize <= 0 {
		s.unlockBatchSize = defaultUnlockBatchSize
	}
	if s.unlockBatchSize > s.unlockBatchMax {
		s.unlockBatchSize = s.unlockBatchMax
	}
	return s, nil
}

// vendorUnit is the state of one vendor-scoped transaction: the locked
// account row and whether its buckets changed.
type vendorUnit struct {
	tx      *gorm.DB
	repo    Repository
	account *models.WalletAccount
	dirty   bool
}

// apply moves one bucket by signed paise, refusing to take it below zero
// or past the int64 range.
func (u *vendorUnit) apply(bucket enums.WalletTransactionStatus, signed int64) error {
	var target *int64
	switch bucket {
	case enums.WalletStatusHold:
		target = &u.account.HoldPaise
	case enums.WalletStatusAvailable:
		target = &u.account.AvailablePaise
	case enums.WalletStatusPaid:
		target = &u.account.PaidPaise
	default:
		return nil
	}
	if signed > 0 && *target > math.MaxInt64-signed {
		return bucketOverflow(bucket, *target, signed)
	}
	if *target+signed < 0 {
		return insufficientBalance(bucket, *target, -signed)
	}
	*target += signed
	u.dirty = signed != 0 || u.dirty
	return nil
}

func (u *vendorUnit) balances() Balances {
	return balancesOf(u.account)
}

// withVendorTx runs fn against the vendor's locked account inside one
// transaction and writes the account back with a version check. Transient
// conflicts rerun the whole unit up to maxAttempts times.
func (s *service) withVendorTx(ctx context.Context, vendorID uuid.UUID, fn func(u *vendorUnit) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			vendor, err := repo.FindVendor(ctx, vendorID)
			if err != nil {
				return err
			}
			if vendor == nil {
				return vendorNotFound(vendorID)
			}
			if err := repo.EnsureAccount(ctx, vendorID); err != nil {
				return err
			}
			account, err := repo.LockAccount(ctx, vendorID)
			if err != nil {
				return err
			}
			unit := &vendorUnit{tx: tx, repo: repo, account: account}
			if err := fn(unit); err != nil {
				return err
			}
			if !unit.dirty {
				return nil
			}
			return repo.UpdateAccount(ctx, account)
		})
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return dependencyError(err, "wallet transaction failed")
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return dependencyError(ctxErr, "wallet transaction canceled")
		}
		if attempt < s.maxAttempts {
			s.metrics.IncConflictRetry()
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"vendor_id": vendorID.String(),
				"attempt":   attempt,
			})
			s.logg.Debug(logCtx, "wallet.conflict.retry")
		}
	}
	s.metrics.IncConflictExhausted()
	return concurrentModification(s.maxAttempts, lastErr)
}

func isRetryable(err error) bool {
	if errors.Is(err, errVersionConflict) {
		return true
	}
	if db.IsSerializationFailure(err) {
		return true
	}
	if pkgerrors.As(err) != nil {
		return false
	}
	return db.IsUniqueViolation(err, IdempotencyIndex)
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}
	return s.outbox.Emit(ctx, tx, event)
}

func (s *service) UpsertVendor(ctx context.Context, vendorID uuid.UUID, name string) error {
	if vendorID == uuid.Nil {
		return validationError("vendor id required")
	}
	if name == "" {
		return validationError("vendor name required")
	}
	vendor := &models.Vendor{ID: vendorID, Name: name}
	if err := s.repo.UpsertVendor(ctx, vendor); err != nil {
		return dependencyError(err, "upsert vendor")
	}
	return nil
}

func (s *service) logCtx(ctx context.Context, vendorID uuid.UUID, key string) context.Context {
	ctx = s.logg.WithVendorID(ctx, vendorID.String())
	if key != "" {
		ctx = s.logg.WithIdempotencyKey(ctx, key)
	}
	return ctx
}

func strPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
