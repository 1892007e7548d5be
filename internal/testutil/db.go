package testutil

import (
	"os"
	"testing"

	"github.com/cribnosh/verify-api/internal/config"
	"github.com/cribnosh/verify-api/internal/database"
	"gorm.io/gorm"
)

// OpenTestDB connects to the postgres named by TEST_DB_HOST, applies
// migrations and empties the tables. Tests are skipped when it is unset.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	cfg := config.DBConfig{
		Host:     host,
		Port:     envOr("TEST_DB_PORT", "5432"),
		User:     envOr("TEST_DB_USER", "verify"),
		Password: envOr("TEST_DB_PASSWORD", "verify"),
		Name:     envOr("TEST_DB_NAME", "verify_test"),
		SSLMode:  "disable",
		TimeZone: "UTC",
	}
	conn, err := database.Open(cfg, "production")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(conn, cfg); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if err := conn.Exec("TRUNCATE otps, otp_issuances, waitlist_entries").Error; err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
