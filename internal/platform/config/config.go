package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultStoreTimeout    = 5 * time.Second
	defaultSupabaseSchema  = "public"
	defaultExchangeURL     = "https://api.exchangerate-api.com/v4/latest/EUR"
	defaultExchangeRefresh = time.Hour
	defaultFallbackRate    = 105
	defaultListingTimeout  = 20 * time.Second
	defaultPublicBaseURL   = "https://storage.googleapis.com"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Supabase      SupabaseConfig
	Storage       StorageConfig
	Notifications NotificationsConfig
	Exchange      ExchangeConfig
	Listing       ListingConfig
	Features      FeatureFlags
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds connection settings for the primary Postgres store.
type DatabaseConfig struct {
	DSN          string
	StoreTimeout time.Duration
}

// SupabaseConfig holds the secondary CRM store settings. An empty URL means
// the secondary store is not configured and booking falls back to
// primary-only operation.
type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
	Schema         string
	StoreTimeout   time.Duration
}

// Enabled reports whether the secondary store should be wired at all.
func (c SupabaseConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.ServiceRoleKey) != ""
}

// StorageConfig lists bucket settings for durable image re-hosting.
type StorageConfig struct {
	ImagesBucket  string
	PublicBaseURL string
}

// NotificationsConfig configures the Pub/Sub order event topic.
type NotificationsConfig struct {
	ProjectID  string
	OrderTopic string
}

// ExchangeConfig controls the EUR/RUB rate refresh loop.
type ExchangeConfig struct {
	Endpoint        string
	RefreshInterval time.Duration
	FallbackRate    float64
}

// ListingConfig points at the external listing-parser collaborator.
type ListingConfig struct {
	Endpoint  string
	AuthToken string
	Timeout   time.Duration
}

// FeatureFlags toggle optional behaviour without redeploying.
type FeatureFlags struct {
	EnableImageCache    bool
	EnableNotifications bool
}

// Load reads configuration from the environment, honouring an optional .env
// file in the working directory.
func Load() (Config, error) {
	// Missing .env is fine; explicit environment always wins.
	_ = godotenv.Load(defaultEnvFile)

	cfg := Config{
		Server: ServerConfig{
			Port:         envOrDefault("PORT", defaultPort),
			ReadTimeout:  envDuration("SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: envDuration("SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  envDuration("SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Database: DatabaseConfig{
			DSN:          strings.TrimSpace(os.Getenv("DATABASE_URL")),
			StoreTimeout: envDuration("DATABASE_STORE_TIMEOUT", defaultStoreTimeout),
		},
		Supabase: SupabaseConfig{
			URL:            strings.TrimSpace(os.Getenv("SUPABASE_URL")),
			ServiceRoleKey: strings.TrimSpace(os.Getenv("SUPABASE_SERVICE_ROLE_KEY")),
			Schema:         envOrDefault("SUPABASE_SCHEMA", defaultSupabaseSchema),
			StoreTimeout:   envDuration("SUPABASE_STORE_TIMEOUT", defaultStoreTimeout),
		},
		Storage: StorageConfig{
			ImagesBucket:  strings.TrimSpace(os.Getenv("STORAGE_IMAGES_BUCKET")),
			PublicBaseURL: envOrDefault("STORAGE_PUBLIC_BASE_URL", defaultPublicBaseURL),
		},
		Notifications: NotificationsConfig{
			ProjectID:  strings.TrimSpace(os.Getenv("PUBSUB_PROJECT_ID")),
			OrderTopic: strings.TrimSpace(os.Getenv("PUBSUB_ORDER_TOPIC")),
		},
		Exchange: ExchangeConfig{
			Endpoint:        envOrDefault("EXCHANGE_RATE_URL", defaultExchangeURL),
			RefreshInterval: envDuration("EXCHANGE_REFRESH_INTERVAL", defaultExchangeRefresh),
			FallbackRate:    envFloat("EXCHANGE_FALLBACK_RATE", defaultFallbackRate),
		},
		Listing: ListingConfig{
			Endpoint:  strings.TrimSpace(os.Getenv("LISTING_PARSER_URL")),
			AuthToken: strings.TrimSpace(os.Getenv("LISTING_PARSER_TOKEN")),
			Timeout:   envDuration("LISTING_PARSER_TIMEOUT", defaultListingTimeout),
		},
		Features: FeatureFlags{
			EnableImageCache:    envBool("ENABLE_IMAGE_CACHE", false),
			EnableNotifications: envBool("ENABLE_NOTIFICATIONS", false),
		},
	}

	if cfg.Database.DSN == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.Exchange.FallbackRate <= 0 {
		return Config{}, fmt.Errorf("config: EXCHANGE_FALLBACK_RATE must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
