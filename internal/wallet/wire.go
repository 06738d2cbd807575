package wallet

import (
	"github.com/angelmondragon/packfinderz-wallet/pkg/config"
	"github.com/angelmondragon/packfinderz-wallet/pkg/db"
	"github.com/angelmondragon/packfinderz-wallet/pkg/logger"
	"github.com/angelmondragon/packfinderz-wallet/pkg/metrics"
	"github.com/angelmondragon/packfinderz-wallet/pkg/outbox"
)

// NewFromConfig wires the wallet service over a database client the way every
// process binary does.
func NewFromConfig(cfg config.WalletConfig, client *db.Client, logg *logger.Logger, m *metrics.WalletMetrics) (Service, error) {
	return NewService(ServiceParams{
		Repo:            NewRepository(client.DB()),
		DB:              client,
		Outbox:          outbox.NewService(outbox.NewRepository(client.DB()), logg),
		Logger:          logg,
		Metrics:         m,
		MaxAttempts:     cfg.MaxAttempts,
		ReturnWindow:    cfg.ReturnWindow(),
		UnlockBatchSize: cfg.UnlockBatchSize,
		UnlockBatchMax:  cfg.UnlockBatchMax,
	})
}
