package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/angelmondragon/packfinderz-wallet/pkg/config"
	"github.com/angelmondragon/packfinderz-wallet/pkg/logger"
)

func TestCheckDatabaseCommand(t *testing.T) {
	dev := &config.Config{App: config.AppConfig{Env: config.AppEnvDev}}
	prod := &config.Config{App: config.AppConfig{Env: config.AppEnvProd}}

	cases := []struct {
		name    string
		cfg     *config.Config
		opts    options
		wantErr bool
	}{
		{"up", prod, options{cmd: "up"}, false},
		{"status", prod, options{cmd: "status"}, false},
		{"down in dev", dev, options{cmd: "down"}, false},
		{"down in prod", prod, options{cmd: "down"}, true},
		{"forced down in prod", prod, options{cmd: "down", force: true}, false},
		{"version without target", dev, options{cmd: "version"}, true},
		{"version", dev, options{cmd: "version", version: "20260301000000"}, false},
		{"unknown", dev, options{cmd: "redo"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkDatabaseCommand(tc.cfg, tc.opts)
			if tc.wantErr != (err != nil) {
				t.Fatalf("wantErr=%v got %v", tc.wantErr, err)
			}
			if err != nil && !errors.Is(err, errUsage) {
				t.Fatalf("expected usage error, got %v", err)
			}
		})
	}
}

func TestRunCreateAndValidateSkipDatabase(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{App: config.AppConfig{Env: config.AppEnvDev}}
	ctx := context.Background()

	if err := run(ctx, cfg, logger.Nop(), options{cmd: "create", dir: dir}); !errors.Is(err, errUsage) {
		t.Fatalf("expected usage error without name, got %v", err)
	}
	if err := run(ctx, cfg, logger.Nop(), options{cmd: "create", dir: dir, name: "add payout index"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.sql"))
	if len(matches) != 1 {
		t.Fatalf("expected one migration file, got %v", matches)
	}
	if err := run(ctx, cfg, logger.Nop(), options{cmd: "validate", dir: dir}); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if err := os.WriteFile(matches[0], []byte("-- +goose Up\nTRUNCATE wallet_transactions;\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("rewrite migration: %v", err)
	}
	if err := run(ctx, cfg, logger.Nop(), options{cmd: "validate", dir: dir}); err == nil {
		t.Fatal("expected validation to reject ledger truncation")
	}
}
