package database

import (
	"fmt"

	"github.com/cribnosh/verify-api/internal/config"
	"github.com/cribnosh/verify-api/internal/model"
	"github.com/cribnosh/verify-api/migrations"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to PostgreSQL with the gorm log level matching the environment
func Open(db config.DBConfig, env string) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Info)
	if env == "production" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	conn, err := gorm.Open(postgres.Open(db.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return conn, nil
}

// Migrate applies the embedded SQL migrations, falling back to gorm
// AutoMigrate when they cannot be read or applied.
func Migrate(conn *gorm.DB, db config.DBConfig) error {
	err := migrations.Run(db.URL())
	if err == nil {
		return nil
	}
	zap.L().Warn("⚠️  migration failed, falling back to AutoMigrate", zap.Error(err))
	if err := conn.AutoMigrate(
		&model.OTP{},
		&model.OTPIssuance{},
		&model.WaitlistEntry{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
