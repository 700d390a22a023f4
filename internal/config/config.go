// Package config handles application configuration from environment variables
package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Seal verification
	SealPublicKey string // Hex-encoded Ed25519 public key; empty disables signature checks
	Currency      string // ISO currency code assumed for OCR amounts

	// Verdict policy
	AcceptThreshold float64
	RejectThreshold float64

	// Matching tolerances
	AmountTolerance   float64 // relative tolerance on amount comparison
	MerchantThreshold float64 // minimum merchant name similarity
	TimestampSkew     time.Duration

	// Trend policy
	TrendMinCount  int
	TrendMinOwners int
	TrendWindow    time.Duration

	// API limits
	HistoryCap       int // max results returned per owner history query
	RateLimitRPS     int
	RequestSizeLimit int64

	// Observability
	OTLPEndpoint string // OTLP gRPC collector address; empty disables tracing
}

const (
	DefaultPort             = "8080"
	DefaultEnv              = "development"
	DefaultLogLevel         = "info"
	DefaultCurrency         = "NGN"
	DefaultRateLimit        = 100
	DefaultHistoryCap       = 100
	DefaultRequestSizeLimit = 1 << 20 // OCR text plus a QR payload is tiny
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", DefaultPort),
		Env:               getEnv("ENV", DefaultEnv),
		LogLevel:          getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:       os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		SealPublicKey:     os.Getenv("SEAL_PUBLIC_KEY"),
		Currency:          getEnv("CURRENCY", DefaultCurrency),
		AcceptThreshold:   getEnvFloat("ACCEPT_THRESHOLD", 0.85),
		RejectThreshold:   getEnvFloat("REJECT_THRESHOLD", 0.60),
		AmountTolerance:   getEnvFloat("AMOUNT_TOLERANCE", 0.01),
		MerchantThreshold: getEnvFloat("MERCHANT_THRESHOLD", 0.85),
		TimestampSkew:     getEnvDuration("TIMESTAMP_SKEW", 5*time.Minute),
		TrendMinCount:     int(getEnvInt64("TREND_MIN_COUNT", 3)),
		TrendMinOwners:    int(getEnvInt64("TREND_MIN_OWNERS", 2)),
		TrendWindow:       getEnvDuration("TREND_WINDOW", 30*24*time.Hour),
		HistoryCap:        int(getEnvInt64("HISTORY_CAP", DefaultHistoryCap)),
		RateLimitRPS:      int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		RequestSizeLimit:  getEnvInt64("REQUEST_SIZE_LIMIT", DefaultRequestSizeLimit),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.SealPublicKey != "" {
		if _, err := c.PublicKey(); err != nil {
			return err
		}
	}
	if c.AcceptThreshold <= 0 || c.AcceptThreshold > 1 {
		return fmt.Errorf("ACCEPT_THRESHOLD must be in (0, 1]")
	}
	if c.AcceptThreshold < c.RejectThreshold {
		return fmt.Errorf("ACCEPT_THRESHOLD must be >= REJECT_THRESHOLD")
	}
	return nil
}

// PublicKey decodes the configured Ed25519 public key. Returns nil when
// signature checking is disabled.
func (c *Config) PublicKey() (ed25519.PublicKey, error) {
	if c.SealPublicKey == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(c.SealPublicKey)
	if err != nil {
		return nil, fmt.Errorf("SEAL_PUBLIC_KEY must be hex: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("SEAL_PUBLIC_KEY must be %d bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	return ed25519.PublicKey(b), nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
