package migrate

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/packfinderz-wallet/pkg/config"
	"github.com/angelmondragon/packfinderz-wallet/pkg/db"
	"github.com/angelmondragon/packfinderz-wallet/pkg/logger"
)

func TestMaybeRunDevAppliesSQLiteSchemaOutsideDev(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:autorun_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := conn.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	cfg := &config.Config{App: config.AppConfig{Env: config.AppEnvProd}}
	client := db.NewFromGorm(conn)
	for i := 0; i < 2; i++ {
		if err := MaybeRunDev(context.Background(), cfg, logger.Nop(), client); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if !conn.Migrator().HasTable("wallet_transactions") {
		t.Fatal("expected wallet_transactions to exist")
	}
}

func TestMaybeRunDevRequiresClient(t *testing.T) {
	if err := MaybeRunDev(context.Background(), &config.Config{}, logger.Nop(), nil); err == nil {
		t.Fatal("expected error without client")
	}
}

func TestAutoMigrateEnabled(t *testing.T) {
	cases := []struct {
		name string
		cfg  *config.Config
		want bool
	}{
		{"nil config", nil, false},
		{"dev without flag", &config.Config{App: config.AppConfig{Env: config.AppEnvDev}}, false},
		{"prod with flag", &config.Config{
			App:          config.AppConfig{Env: config.AppEnvProd},
			FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
		}, false},
		{"dev with flag", &config.Config{
			App:          config.AppConfig{Env: config.AppEnvDev},
			FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := autoMigrateEnabled(tc.cfg); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
