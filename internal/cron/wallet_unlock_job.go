package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/packfinderz-wallet/internal/wallet"
	"github.com/angelmondragon/packfinderz-wallet/pkg/logger"
)

const defaultUnlockMaxBatches = 10

type walletUnlocker interface {
	Unlock(ctx context.Context, limit int) (*wallet.UnlockResult, error)
}

type WalletUnlockJobParams struct {
	Logger     *logger.Logger
	Wallet     walletUnlocker
	BatchSize  int
	MaxBatches int
}

// NewWalletUnlockJob builds the job that promotes matured hold credits.
func NewWalletUnlockJob(params WalletUnlockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Wallet == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if params.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	maxBatches := params.MaxBatches
	if maxBatches <= 0 {
		maxBatches = defaultUnlockMaxBatches
	}
	return &walletUnlockJob{
		logg:       params.Logger,
		wallet:     params.Wallet,
		batchSize:  params.BatchSize,
		maxBatches: maxBatches,
	}, nil
}

type walletUnlockJob struct {
	logg       *logger.Logger
	wallet     walletUnlocker
	batchSize  int
	maxBatches int
}

func (j *walletUnlockJob) Name() string { return "wallet-unlock" }

// Run drains matured credits in batches until a batch comes back short, a
// batch fails, or the per-run batch cap is hit.
func (j *walletUnlockJob) Run(ctx context.Context) error {
	var (
		errs     error
		batches  int
		promoted int
		paise    int64
	)
	for batches < j.maxBatches {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		batches++
		result, err := j.wallet.Unlock(ctx, j.batchSize)
		if result != nil {
			promoted += result.Promoted
			paise += result.PromotedPaise
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		if result == nil || result.Promoted < j.batchSize {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"batches":        batches,
		"promoted":       promoted,
		"promoted_paise": paise,
	})
	if errs != nil {
		return fmt.Errorf("wallet unlock after %d batches: %w", batches, errs)
	}
	j.logg.Info(logCtx, "wallet unlock sweep complete")
	return nil
}
