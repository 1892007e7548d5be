package main

import (
	"fmt"

	"github.com/cribnosh/verify-api/internal/config"
	"github.com/cribnosh/verify-api/internal/database"
	"github.com/cribnosh/verify-api/internal/repository"
	"github.com/cribnosh/verify-api/internal/service"
	"github.com/cribnosh/verify-api/pkg/logger"
	"go.uber.org/zap"
)

// bootstrap loads configuration and installs the global logger. The
// returned func flushes the logger.
func bootstrap() (*config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	undo := zap.ReplaceGlobals(log)
	return cfg, func() {
		_ = log.Sync()
		undo()
	}, nil
}

type stores struct {
	otp      service.OTPStore
	waitlist service.WaitlistStore
	close    func()
}

// openStores returns the configured OTP and waitlist backends. Postgres
// connections are migrated before use.
func openStores(cfg *config.Config) (*stores, error) {
	if cfg.Store.Driver == "memory" {
		zap.L().Warn("⚠️  using in-memory store, records are lost on restart")
		return &stores{
			otp:      repository.NewMemoryOTPStore(),
			waitlist: repository.NewMemoryWaitlistStore(),
			close:    func() {},
		}, nil
	}

	db, err := database.Open(cfg.DB, cfg.App.Env)
	if err != nil {
		return nil, err
	}
	zap.L().Info("✅ Connected to PostgreSQL", zap.String("host", cfg.DB.Host), zap.String("db", cfg.DB.Name))

	if err := database.Migrate(db, cfg.DB); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	return &stores{
		otp:      repository.NewOTPRepository(db),
		waitlist: repository.NewWaitlistRepository(db),
		close: func() {
			if err := sqlDB.Close(); err != nil {
				zap.L().Warn("closing database", zap.Error(err))
			}
		},
	}, nil
}
