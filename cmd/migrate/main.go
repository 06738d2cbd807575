package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/packfinderz-wallet/pkg/config"
	"github.com/angelmondragon/packfinderz-wallet/pkg/db"
	"github.com/angelmondragon/packfinderz-wallet/pkg/logger"
	"github.com/angelmondragon/packfinderz-wallet/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
	force   bool
}

var errUsage = errors.New("usage")

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.BoolVar(&opts.force, "force", false, "allow down migrations outside dev")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	if err := run(ctx, cfg, logg, opts); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			flag.Usage()
			os.Exit(2)
		}
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) error {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return fmt.Errorf("%w: -name is required for create", errUsage)
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return fmt.Errorf("validate migrations: %w", err)
		}
		fmt.Println("migration validation passed")
		return nil
	}
	if err := checkDatabaseCommand(cfg, opts); err != nil {
		return err
	}

	dbClient, err := db.Open(ctx, cfg, logg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer dbClient.Close()

	if dbClient.Dialect() == "sqlite" {
		if opts.cmd != "up" {
			return fmt.Errorf("%w: -cmd=%s is not supported on sqlite", errUsage, opts.cmd)
		}
		if err := migrate.ApplySQLiteSchema(ctx, dbClient.DB()); err != nil {
			return err
		}
		logg.Info(ctx, "sqlite schema applied")
		return nil
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	dir := migrate.ResolveDir(opts.dir)
	if opts.cmd == "up" && dir != migrate.EmbeddedDir {
		if err := migrate.ValidateDir(dir); err != nil {
			return fmt.Errorf("validate before up: %w", err)
		}
	}

	logg.Info(logg.WithField(ctx, "resolved_dir", dir), "migrate ready")
	if opts.cmd == "version" {
		return migrate.MigrateToVersion(ctx, sqlDB, dir, opts.version)
	}
	return migrate.Run(ctx, sqlDB, dir, opts.cmd)
}

// checkDatabaseCommand rejects unknown commands and down migrations against
// shared environments unless -force is set.
func checkDatabaseCommand(cfg *config.Config, opts options) error {
	switch opts.cmd {
	case "up", "status":
		return nil
	case "down":
		if !cfg.App.IsDev() && !opts.force {
			return fmt.Errorf("%w: down in %s requires -force", errUsage, cfg.App.Env)
		}
		return nil
	case "version":
		if opts.version == "" {
			return fmt.Errorf("%w: -version is required for version", errUsage)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown -cmd value %q", errUsage, opts.cmd)
	}
}
