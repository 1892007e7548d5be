package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig
	Log      LogConfig
	Store    StoreConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Admin    AdminConfig
	CORS     CORSConfig
	SMTP     SMTPConfig
	SMS      SMSConfig
	OTP      OTPConfig
	Throttle ThrottleConfig
	Cleanup  CleanupConfig
}

type AppConfig struct {
	Env  string
	Port string
}

// IsProduction reports whether the stricter production defaults apply.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

type LogConfig struct {
	Level string
}

// StoreConfig selects the OTP/waitlist backend: "postgres" or "memory".
type StoreConfig struct {
	Driver string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	TimeZone string
}

// DSN returns the PostgreSQL connection string
func (d DBConfig) DSN() string {
	return "host=" + d.Host +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" port=" + d.Port +
		" sslmode=" + d.SSLMode +
		" TimeZone=" + d.TimeZone
}

// URL returns the PostgreSQL connection URL (for golang-migrate)
func (d DBConfig) URL() string {
	return "postgres://" + d.User + ":" + d.Password +
		"@" + d.Host + ":" + d.Port +
		"/" + d.Name + "?sslmode=" + d.SSLMode
}

// RedisConfig is optional: an empty Host disables Redis and the service
// falls back to in-process throttling and single-instance events.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns the Redis address
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type AdminConfig struct {
	Username     string
	PasswordHash string // bcrypt
}

type CORSConfig struct {
	Origins []string
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type SMSConfig struct {
	Provider string // twilio | authkey | log
	SenderID string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	AuthKeyKey         string
	AuthKeyTemplateID  string
	AuthKeyCountryCode string // numbers outside this calling code are rejected
}

// OTPConfig carries the tunables of issuance and verification.
type OTPConfig struct {
	Expiry             time.Duration
	DefaultMaxAttempts int
	MaxPerIdentifier   int
	RateWindow         time.Duration
	DeliveryTimeout    time.Duration

	// FixedCode replaces generated codes in development. ExposeCode echoes
	// the issued code in the send response. Both are rejected in production.
	FixedCode  string
	ExposeCode bool
}

// ExpiryMinutes is the whole-minute expiry communicated to recipients.
func (o OTPConfig) ExpiryMinutes() int {
	return int(o.Expiry / time.Minute)
}

type ThrottleConfig struct {
	SendLimit    int
	SendWindow   time.Duration
	VerifyLimit  int
	VerifyWindow time.Duration
	CacheSize    int
}

type CleanupConfig struct {
	Enabled bool
	Spec    string
}

const (
	MinMaxAttempts = 1
	MaxMaxAttempts = 10

	productionMaxPerIdentifier    = 4
	nonProductionMaxPerIdentifier = 20
)

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if not exists - e.g. in Docker)
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment variables")
	}

	env := getEnv("APP_ENV", "development")
	defaultCeiling := nonProductionMaxPerIdentifier
	if env == "production" {
		defaultCeiling = productionMaxPerIdentifier
	}

	cfg := &Config{
		App: AppConfig{
			Env:  env,
			Port: getEnv("APP_PORT", "8080"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", "postgres"),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "verify"),
			Password: getEnv("DB_PASSWORD", "verify"),
			Name:     getEnv("DB_NAME", "verify"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			TimeZone: getEnv("DB_TIMEZONE", "UTC"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "default-secret"),
			Expiry: getEnvDuration("JWT_EXPIRY", 12*time.Hour),
		},
		Admin: AdminConfig{
			Username:     getEnv("ADMIN_USERNAME", "admin"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		CORS: CORSConfig{
			Origins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnv("SMTP_PORT", "1025"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "noreply@cribnosh.com"),
			FromName: getEnv("SMTP_FROM_NAME", "CribNosh"),
		},
		SMS: SMSConfig{
			Provider:           getEnv("SMS_PROVIDER", "log"),
			SenderID:           getEnv("SMS_SENDER_ID", "CribNosh"),
			TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioFrom:         getEnv("TWILIO_FROM", ""),
			AuthKeyKey:         getEnv("AUTHKEY_KEY", ""),
			AuthKeyTemplateID:  getEnv("AUTHKEY_TEMPLATE_ID", ""),
			AuthKeyCountryCode: getEnv("AUTHKEY_COUNTRY_CODE", "91"),
		},
		OTP: OTPConfig{
			Expiry:             getEnvDuration("OTP_EXPIRY", 5*time.Minute),
			DefaultMaxAttempts: getEnvInt("OTP_DEFAULT_MAX_ATTEMPTS", 3),
			MaxPerIdentifier:   getEnvInt("OTP_MAX_PER_IDENTIFIER", defaultCeiling),
			RateWindow:         getEnvDuration("OTP_RATE_WINDOW", time.Hour),
			DeliveryTimeout:    getEnvDuration("OTP_DELIVERY_TIMEOUT", 10*time.Second),
			FixedCode:          getEnv("OTP_FIXED_CODE", ""),
			ExposeCode:         getEnv("OTP_EXPOSE_CODE", "false") == "true",
		},
		Throttle: ThrottleConfig{
			SendLimit:    getEnvInt("THROTTLE_SEND_LIMIT", 5),
			SendWindow:   getEnvDuration("THROTTLE_SEND_WINDOW", 15*time.Minute),
			VerifyLimit:  getEnvInt("THROTTLE_VERIFY_LIMIT", 10),
			VerifyWindow: getEnvDuration("THROTTLE_VERIFY_WINDOW", 5*time.Minute),
			CacheSize:    getEnvInt("THROTTLE_CACHE_SIZE", 10000),
		},
		Cleanup: CleanupConfig{
			Enabled: getEnv("CLEANUP_ENABLED", "true") == "true",
			Spec:    getEnv("CLEANUP_SPEC", "*/10 * * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the OTP flow cannot honor.
func (c *Config) Validate() error {
	if c.OTP.Expiry < time.Minute {
		return fmt.Errorf("OTP_EXPIRY must be at least 1m, got %s", c.OTP.Expiry)
	}
	if c.OTP.DefaultMaxAttempts < MinMaxAttempts || c.OTP.DefaultMaxAttempts > MaxMaxAttempts {
		return fmt.Errorf("OTP_DEFAULT_MAX_ATTEMPTS must be between %d and %d", MinMaxAttempts, MaxMaxAttempts)
	}
	if c.OTP.MaxPerIdentifier < 1 {
		return fmt.Errorf("OTP_MAX_PER_IDENTIFIER must be positive")
	}
	if c.OTP.RateWindow <= 0 {
		return fmt.Errorf("OTP_RATE_WINDOW must be positive")
	}
	if c.App.IsProduction() {
		if c.OTP.FixedCode != "" || c.OTP.ExposeCode {
			return fmt.Errorf("OTP_FIXED_CODE and OTP_EXPOSE_CODE are not allowed in production")
		}
		if c.JWT.Secret == "default-secret" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
	}
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.Store.Driver)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, value, fallback)
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
