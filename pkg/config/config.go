package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Env       string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	OTEL      OTELConfig
	Booking   BookingConfig
	Payments  PaymentsConfig
	Catalog   CatalogConfig
	Messaging MessagingConfig
	Reminders RemindersConfig
	Events    EventsConfig
	Storage   StorageConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Sweeps    SweepsConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver      string // postgres or memory
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	AutoMigrate bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// BookingConfig holds the slot grid and lifecycle timings.
type BookingConfig struct {
	SlotMinutes        int
	OperatingStart     string
	OperatingEnd       string
	MaxPerSlot         int
	CancellationCutoff time.Duration
	NoShowGrace        time.Duration
	Timezone           string
}

// PaymentsConfig holds payment gateway configuration
type PaymentsConfig struct {
	Provider              string // stripe or mock
	StripeSecretKey       string
	StripeWebhookSecret   string
	DirectSigningSecret   string
	Currency              string
	Timeout               time.Duration
	BreakerFailureLimit   int
	BreakerOpenTimeout    time.Duration
	WebhookDedupeTTL      time.Duration
	PaymentLinkSuccessURL string
}

// CatalogConfig holds the catalog/pricing collaborator configuration
type CatalogConfig struct {
	BaseURL  string
	CacheTTL time.Duration
	CacheMax int
}

// MessagingConfig holds WhatsApp Cloud API credentials used for reminders
type MessagingConfig struct {
	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	WhatsAppBaseURL       string
}

// RemindersConfig holds reminder queue configuration
type RemindersConfig struct {
	Enabled     bool
	Queue       string
	Concurrency int
}

// EventsConfig holds booking event publication configuration
type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

// StorageConfig holds outcome artifact storage configuration
type StorageConfig struct {
	CloudinaryURL string
	Folder        string
}

// AuthConfig holds bearer token configuration
type AuthConfig struct {
	JWTSecret string
}

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// SweepsConfig holds reconciliation sweep scheduling
type SweepsConfig struct {
	Schedule string
	LockTTL  time.Duration
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment wins.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Driver:      getEnv("STORE_DRIVER", "postgres"),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvAsInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", ""),
			Database:    getEnv("DB_NAME", "carebook"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "carebook-booking"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Booking: BookingConfig{
			SlotMinutes:        getEnvAsInt("SLOT_MINUTES", 30),
			OperatingStart:     getEnv("OPERATING_START", "07:00"),
			OperatingEnd:       getEnv("OPERATING_END", "20:00"),
			MaxPerSlot:         getEnvAsInt("MAX_PER_SLOT", 5),
			CancellationCutoff: getEnvAsDuration("CANCELLATION_CUTOFF", time.Hour),
			NoShowGrace:        getEnvAsDuration("NO_SHOW_GRACE", 15*time.Minute),
			Timezone:           getEnv("BOOKING_TIMEZONE", "UTC"),
		},
		Payments: PaymentsConfig{
			Provider:              getEnv("PAYMENT_PROVIDER", "mock"),
			StripeSecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
			StripeWebhookSecret:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
			DirectSigningSecret:   getEnv("PAYMENT_SIGNING_SECRET", ""),
			Currency:              strings.ToLower(getEnv("PAYMENT_CURRENCY", "inr")),
			Timeout:               getEnvAsDuration("PAYMENT_GATEWAY_TIMEOUT", 10*time.Second),
			BreakerFailureLimit:   getEnvAsInt("PAYMENT_BREAKER_FAILURES", 5),
			BreakerOpenTimeout:    getEnvAsDuration("PAYMENT_BREAKER_OPEN_TIMEOUT", 30*time.Second),
			WebhookDedupeTTL:      getEnvAsDuration("PAYMENT_WEBHOOK_DEDUPE_TTL", 72*time.Hour),
			PaymentLinkSuccessURL: getEnv("PAYMENT_LINK_SUCCESS_URL", ""),
		},
		Catalog: CatalogConfig{
			BaseURL:  getEnv("CATALOG_BASE_URL", ""),
			CacheTTL: getEnvAsDuration("CATALOG_CACHE_TTL", 5*time.Minute),
			CacheMax: getEnvAsInt("CATALOG_CACHE_MAX", 1024),
		},
		Messaging: MessagingConfig{
			WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			WhatsAppBaseURL:       getEnv("WHATSAPP_BASE_URL", "https://graph.facebook.com/v18.0"),
		},
		Reminders: RemindersConfig{
			Enabled:     getEnvAsBool("REMINDERS_ENABLED", true),
			Queue:       getEnv("REMINDERS_QUEUE", "reminders"),
			Concurrency: getEnvAsInt("REMINDERS_CONCURRENCY", 10),
		},
		Events: EventsConfig{
			AMQPURL:  getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "booking.events"),
		},
		Storage: StorageConfig{
			CloudinaryURL: getEnv("CLOUDINARY_URL", ""),
			Folder:        getEnv("ARTIFACT_FOLDER", "booking-outcomes"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Sweeps: SweepsConfig{
			Schedule: getEnv("SWEEP_SCHEDULE", "@every 1m"),
			LockTTL:  getEnvAsDuration("SWEEP_LOCK_TTL", 50*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail deep inside the engine.
func (c *Config) Validate() error {
	if c.Booking.SlotMinutes <= 0 {
		return fmt.Errorf("SLOT_MINUTES must be positive, got %d", c.Booking.SlotMinutes)
	}
	if c.Booking.MaxPerSlot <= 0 {
		return fmt.Errorf("MAX_PER_SLOT must be positive, got %d", c.Booking.MaxPerSlot)
	}
	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("invalid BOOKING_TIMEZONE %q: %w", c.Booking.Timezone, err)
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Database.Driver)
	}
	switch c.Payments.Provider {
	case "stripe":
		if c.Payments.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required when PAYMENT_PROVIDER=stripe")
		}
	case "mock":
	default:
		return fmt.Errorf("unsupported PAYMENT_PROVIDER %q", c.Payments.Provider)
	}
	return nil
}

// Location returns the booking timezone. Validate guarantees it loads.
func (c *BookingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
