package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string

	DB         DatabaseConfig
	Mongo      MongoConfig
	Redis      RedisConfig
	Mobimatter MobimatterConfig
	QPay       QPayConfig
	Gemini     GeminiConfig
	SMTP       SMTPConfig
	Catalog    CatalogConfig
	Checkout   CheckoutConfig
	Worker     WorkerConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// MongoConfig contains MongoDB connection parameters for the order store.
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// MobimatterConfig contains credentials for the catalog feed provider.
type MobimatterConfig struct {
	BaseURL    string
	APIKey     string
	MerchantID string
}

// QPayConfig contains payment gateway merchant credentials.
type QPayConfig struct {
	BaseURL       string
	Username      string
	Password      string
	InvoiceCode   string
	CallbackURL   string
	WebhookSecret string
}

// GeminiConfig contains the LLM credentials for the travel assistant.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// SMTPConfig contains the transactional mail relay. When Host is empty the
// application falls back to log-only delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// CatalogConfig tunes catalog feed caching and pricing fallbacks.
type CatalogConfig struct {
	CacheTTL             time.Duration
	DefaultUSDToMNTRate  float64
	DefaultMarginPercent float64
}

// CheckoutConfig tunes the payment confirmation workflow.
type CheckoutConfig struct {
	PollInterval    time.Duration // gateway status poll cadence
	PollTimeout     time.Duration // hard ceiling for a pending invoice
	ProcessingDelay time.Duration // pause between paid observation and success
	SessionTTL      time.Duration // how long finished sessions stay queryable
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	CatalogSyncInterval     time.Duration
	ProvisionInterval       time.Duration
	ProvisionStaleAfter     time.Duration
	ProvisionMaxAge         time.Duration
	SettingsRefreshInterval time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// MongoDB (orders, eSIM profiles)
	cfg.Mongo = MongoConfig{
		URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		Database: getEnv("MONGO_DATABASE", "nomadsim"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Mobimatter catalog feed
	cfg.Mobimatter = MobimatterConfig{
		BaseURL:    getEnv("MOBIMATTER_BASE_URL", ""),
		APIKey:     getEnv("MOBIMATTER_API_KEY", ""),
		MerchantID: getEnv("MOBIMATTER_MERCHANT_ID", ""),
	}

	// QPay payment gateway
	cfg.QPay = QPayConfig{
		BaseURL:       getEnv("QPAY_BASE_URL", ""),
		Username:      getEnv("QPAY_USERNAME", ""),
		Password:      getEnv("QPAY_PASSWORD", ""),
		InvoiceCode:   getEnv("QPAY_INVOICE_CODE", ""),
		CallbackURL:   getEnv("QPAY_CALLBACK_URL", ""),
		WebhookSecret: getEnv("QPAY_WEBHOOK_SECRET", ""),
	}

	// Gemini travel assistant
	cfg.Gemini = GeminiConfig{
		APIKey: getEnv("GEMINI_API_KEY", ""),
		Model:  getEnv("GEMINI_MODEL", "models/gemini-1.5-pro"),
	}

	// SMTP relay for receipts and eSIM delivery
	cfg.SMTP = SMTPConfig{
		Host:     getEnv("SMTP_HOST", ""),
		Port:     getEnvInt("SMTP_PORT", 587),
		Username: getEnv("SMTP_USERNAME", ""),
		Password: getEnv("SMTP_PASSWORD", ""),
		From:     getEnv("SMTP_FROM", "no-reply@nomadsim.mn"),
	}

	// Catalog pricing fallbacks (used until the settings store is readable)
	cfg.Catalog.DefaultUSDToMNTRate = getEnvFloat("DEFAULT_USD_MNT_RATE", 3450)
	cfg.Catalog.DefaultMarginPercent = getEnvFloat("DEFAULT_MARGIN_PERCENT", 20)

	// Durations
	var err error
	if cfg.Catalog.CacheTTL, err = parseDurationEnv("CATALOG_CACHE_TTL", "1h"); err != nil {
		return nil, fmt.Errorf("invalid CATALOG_CACHE_TTL: %w", err)
	}
	if cfg.Checkout.PollInterval, err = parseDurationEnv("PAYMENT_POLL_INTERVAL", "3s"); err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_POLL_INTERVAL: %w", err)
	}
	if cfg.Checkout.PollTimeout, err = parseDurationEnv("PAYMENT_POLL_TIMEOUT", "10m"); err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_POLL_TIMEOUT: %w", err)
	}
	if cfg.Checkout.ProcessingDelay, err = parseDurationEnv("PAYMENT_PROCESSING_DELAY", "2s"); err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_PROCESSING_DELAY: %w", err)
	}
	if cfg.Checkout.SessionTTL, err = parseDurationEnv("CHECKOUT_SESSION_TTL", "30m"); err != nil {
		return nil, fmt.Errorf("invalid CHECKOUT_SESSION_TTL: %w", err)
	}
	if cfg.Worker.CatalogSyncInterval, err = parseDurationEnv("CATALOG_SYNC_INTERVAL", "1h"); err != nil {
		return nil, fmt.Errorf("invalid CATALOG_SYNC_INTERVAL: %w", err)
	}
	if cfg.Worker.ProvisionInterval, err = parseDurationEnv("PROVISION_INTERVAL", "30s"); err != nil {
		return nil, fmt.Errorf("invalid PROVISION_INTERVAL: %w", err)
	}
	if cfg.Worker.ProvisionStaleAfter, err = parseDurationEnv("PROVISION_STALE_AFTER", "1m"); err != nil {
		return nil, fmt.Errorf("invalid PROVISION_STALE_AFTER: %w", err)
	}
	if cfg.Worker.ProvisionMaxAge, err = parseDurationEnv("PROVISION_MAX_AGE", "30m"); err != nil {
		return nil, fmt.Errorf("invalid PROVISION_MAX_AGE: %w", err)
	}
	if cfg.Worker.SettingsRefreshInterval, err = parseDurationEnv("SETTINGS_REFRESH_INTERVAL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid SETTINGS_REFRESH_INTERVAL: %w", err)
	}

	// Basic validation for DB parameters — keeps messages concise and helpful.
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}

	// Validate JWT_SECRET
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set for authentication")
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvFloat returns the value of an environment variable as a float or a default if empty/invalid.
func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
