package wallet

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/packfinderz-wallet/pkg/db"
	"github.com/angelmondragon/packfinderz-wallet/pkg/db/models"
	"github.com/angelmondragon/packfinderz-wallet/pkg/logger"
	"github.com/angelmondragon/packfinderz-wallet/pkg/metrics"
	"github.com/angelmondragon/packfinderz-wallet/pkg/migrate"
	"github.com/angelmondragon/packfinderz-wallet/pkg/outbox"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type walletHarness struct {
	conn  *gorm.DB
	svc   Service
	clock *testClock
}

func setupWalletTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:wallet_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migrate.ApplySQLiteSchema(context.Background(), conn))
	return conn
}

func newWalletHarness(t *testing.T) *walletHarness {
	t.Helper()
	return newWalletHarnessWithRepo(t, nil)
}

// newWalletHarnessWithRepo lets a test decorate the repository the service
// sees while the harness keeps direct access to the database.
func newWalletHarnessWithRepo(t *testing.T, wrap func(Repository) Repository) *walletHarness {
	t.Helper()

	conn := setupWalletTestDB(t)
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	logg := logger.New(logger.Options{ServiceName: "wallet-test", Output: io.Discard})

	repo := NewRepository(conn)
	if wrap != nil {
		repo = wrap(repo)
	}
	svc, err := NewService(ServiceParams{
		Repo:            repo,
		DB:              db.NewFromGorm(conn),
		Outbox:          outbox.NewService(outbox.NewRepository(conn), logg),
		Logger:          logg,
		Metrics:         metrics.NewWalletMetrics(prometheus.NewRegistry()),
		Now:             clock.Now,
		MaxAttempts:     5,
		ReturnWindow:    7 * 24 * time.Hour,
		UnlockBatchSize: 50,
		UnlockBatchMax:  100,
	})
	require.NoError(t, err)
	return &walletHarness{conn: conn, svc: svc, clock: clock}
}

func (h *walletHarness) vendor(t *testing.T, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, h.svc.UpsertVendor(context.Background(), id, name))
	return id
}

func (h *walletHarness) balances(t *testing.T, vendorID uuid.UUID) Balances {
	t.Helper()
	b, err := h.svc.GetBalances(context.Background(), vendorID)
	require.NoError(t, err)
	return b
}

// requireConsistent checks the projection against the ledger and that no
// bucket is negative.
func (h *walletHarness) requireConsistent(t *testing.T, vendorID uuid.UUID) {
	t.Helper()
	report, err := h.svc.Reconcile(context.Background(), vendorID)
	require.NoError(t, err)
	require.True(t, report.Consistent, "projection %+v ledger %+v", report.Projection, report.Ledger)
	require.GreaterOrEqual(t, report.Projection.HoldPaise, int64(0))
	require.GreaterOrEqual(t, report.Projection.AvailablePaise, int64(0))
	require.GreaterOrEqual(t, report.Projection.PaidPaise, int64(0))
}

func (h *walletHarness) credit(t *testing.T, vendorID uuid.UUID, subOrder string, amount int64, maturesIn time.Duration) *AppendResult {
	t.Helper()
	matures := h.clock.now.Add(maturesIn)
	res, err := h.svc.CreditOnDelivery(context.Background(), CreditOnDeliveryInput{
		VendorID:       vendorID,
		OrderCode:      "ORD-" + subOrder,
		SubOrderID:     subOrder,
		AmountPaise:    amount,
		MaturesAt:      &matures,
		IdempotencyKey: "order_delivered:" + subOrder,
	})
	require.NoError(t, err)
	return res
}

func (h *walletHarness) countTransactions(t *testing.T, vendorID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(&models.WalletTransaction{}).Where("vendor_id = ?", vendorID).Count(&n).Error)
	return n
}

func (h *walletHarness) countOutbox(t *testing.T, eventType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}
