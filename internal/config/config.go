package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the whole application configuration, populated from
// environment variables.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	CJ       CJConfig
	FX       FXConfig
	Pricing  PricingConfig
	Importer ImporterConfig
	MinIO    MinIOConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
}

type DatabaseConfig struct {
	URL      string // full connection URL; overrides the discrete fields when set
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	AccessTokenExpiry int // minutes
}

type CORSConfig struct {
	Origins []string
}

// CJConfig configures the outbound CJ dropshipping client.
type CJConfig struct {
	BaseURL        string
	Email          string
	APIKey         string
	RPS            float64       // token-bucket refill rate, requests/second
	MaxConcurrency int64         // in-flight request cap
	RequestTimeout time.Duration // hard per-request timeout
	MaxAttempts    int           // attempts on transient failures
	BackoffBase    time.Duration
	BackoffCap     time.Duration
}

// FXConfig configures the exchange-rate cache and provider.
type FXConfig struct {
	APIKey       string // "free" enables static fallback mode
	CacheTTL     time.Duration
	DegradedMode bool // serve newest stale row when provider is down
	Currencies   []string
}

// PricingConfig holds the pricing-engine defaults.
type PricingConfig struct {
	MarginPct     float64 // default profit margin, percent (200 = x2 cost)
	MinProfitSAR  float64
	MarkupPct     float64 // multi-currency display markup
	MinProfitUSD  float64
	SyncCountries []string
	DefaultShipTo string
	VATDefaultSA  float64 // percent
	VATDefaultGCC float64 // percent
}

type ImporterConfig struct {
	PauseBetweenBatches time.Duration
	HeartbeatInterval   time.Duration
	StaleAfter          time.Duration // running jobs older than this are abandoned
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Luxestore API"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
		Database: DatabaseConfig{
			// MONGO_URL is the legacy name for the datastore URL and is kept
			// as an alias so existing deployments keep working.
			URL:      getEnv("DATABASE_URL", getEnv("MONGO_URL", "")),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "luxestore"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 25),
			MinConns: getEnvInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET_KEY", "change-me-in-production"),
			AccessTokenExpiry: getEnvInt("JWT_ACCESS_EXPIRY", 60*24),
		},
		CORS: CORSConfig{
			Origins: splitCSV(getEnv("CORS_ORIGINS", "*")),
		},
		CJ: CJConfig{
			BaseURL:        getEnv("CJ_BASE", "https://developers.cjdropshipping.com/api2.0"),
			Email:          getEnv("CJ_DROPSHIP_EMAIL", ""),
			APIKey:         getEnv("CJ_DROPSHIP_API_KEY", ""),
			RPS:            getEnvFloat("CJ_RPS", 2),
			MaxConcurrency: int64(getEnvInt("CJ_MAX_CONCURRENCY", 3)),
			RequestTimeout: getEnvDuration("CJ_REQUEST_TIMEOUT_SECONDS", 40) * time.Second,
			MaxAttempts:    getEnvInt("CJ_MAX_ATTEMPTS", 5),
			BackoffBase:    getEnvDuration("CJ_BACKOFF_BASE_SECONDS", 2) * time.Second,
			BackoffCap:     getEnvDuration("CJ_BACKOFF_CAP_SECONDS", 30) * time.Second,
		},
		FX: FXConfig{
			APIKey:       getEnv("EXCHANGE_RATE_API_KEY", "free"),
			CacheTTL:     getEnvDuration("FX_CACHE_TTL_MINUTES", 60) * time.Minute,
			DegradedMode: getEnvBool("FX_DEGRADED_MODE", false),
			Currencies:   splitCSV(getEnv("FX_CURRENCIES", "USD,SAR,AED,BHD,OMR,KWD,QAR,EUR,GBP")),
		},
		Pricing: PricingConfig{
			MarginPct:     getEnvFloat("PRICE_MARGIN_PCT", 200),
			MinProfitSAR:  getEnvFloat("MIN_PROFIT_SAR", 10),
			MarkupPct:     getEnvFloat("ALI_PRICE_MARKUP_PCT", 100),
			MinProfitUSD:  getEnvFloat("ALI_MIN_PROFIT_USD", 2.5),
			SyncCountries: splitCSV(getEnv("ALI_SYNC_COUNTRIES", "SA,AE,KW,QA,BH,OM")),
			DefaultShipTo: getEnv("ALI_DEFAULT_SHIP_TO", "SA"),
			VATDefaultSA:  getEnvFloat("DEFAULT_VAT_SA", 15),
			VATDefaultGCC: getEnvFloat("DEFAULT_VAT_GCC", 5),
		},
		Importer: ImporterConfig{
			PauseBetweenBatches: getEnvDuration("PAUSE_BETWEEN_BATCHES_SECONDS", 2) * time.Second,
			HeartbeatInterval:   getEnvDuration("IMPORT_HEARTBEAT_SECONDS", 30) * time.Second,
			StaleAfter:          getEnvDuration("IMPORT_STALE_AFTER_SECONDS", 120) * time.Second,
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "luxestore"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks production-critical values.
func (c *Config) Validate() error {
	if c.App.Environment == "production" {
		if c.JWT.Secret == "change-me-in-production" {
			return fmt.Errorf("JWT_SECRET_KEY must be set in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD must be set in production")
		}
		if c.CJ.APIKey == "" {
			fmt.Println("WARNING: CJ_DROPSHIP_API_KEY not set - supplier imports will not work")
		}
	}

	if c.CJ.RPS <= 0 {
		return fmt.Errorf("CJ_RPS must be positive")
	}
	if c.CJ.MaxConcurrency <= 0 {
		return fmt.Errorf("CJ_MAX_CONCURRENCY must be positive")
	}

	return nil
}

// StaticFallbackMode reports whether the FX provider is disabled and only the
// static rate table should be used.
func (c *FXConfig) StaticFallbackMode() bool {
	return c.APIKey == "" || c.APIKey == "free"
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue))
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
