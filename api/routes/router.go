package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packfinderz-wallet/api/controllers"
	"github.com/angelmondragon/packfinderz-wallet/api/middleware"
	"github.com/angelmondragon/packfinderz-wallet/internal/wallet"
	"github.com/angelmondragon/packfinderz-wallet/pkg/config"
	"github.com/angelmondragon/packfinderz-wallet/pkg/db"
	"github.com/angelmondragon/packfinderz-wallet/pkg/logger"
	"github.com/angelmondragon/packfinderz-wallet/pkg/metrics"
	"github.com/angelmondragon/packfinderz-wallet/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	walletService wallet.Service,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Actor(),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["db"] = dbP
	}
	var idempotencyStore redis.IdempotencyStore
	if redisClient != nil {
		deps["redis"] = redisClient
		idempotencyStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, deps))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/admin/v1/vendor-wallet", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, cfg.Eventing.HTTPIdempotencyTTL, logg))

		r.Get("/", controllers.WalletVendorList(walletService, logg))
		r.Get("/vendor/{vendorId}", controllers.WalletVendorDetail(walletService, logg))
		r.Get("/vendor/{vendorId}/reconcile", controllers.WalletReconcile(walletService, logg))
		r.Post("/unlock", controllers.WalletUnlock(walletService, logg))
		r.Post("/payout/release", controllers.WalletPayoutRelease(walletService, logg))
		r.Post("/payout/failed", controllers.WalletPayoutFailed(walletService, logg))
		r.Post("/adjustments", controllers.WalletAdjustment(walletService, logg))
	})

	return r
}
