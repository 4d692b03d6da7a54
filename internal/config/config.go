// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, database selection, deal and notification tuning, push and event
// transport settings, rate limiting, and observability.
package config

import (
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "realtyd")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DealsConfig tunes commission and price-drop behavior.
type DealsConfig struct {
	DefaultCommissionRate float64       // DEFAULT_COMMISSION_RATE, percent
	PriceDropThreshold    float64       // PRICE_DROP_THRESHOLD, fraction in (0,1]
	PriceDropCooldown     time.Duration // PRICE_DROP_COOLDOWN
}

// NotifyConfig tunes the notification fan-out and push delivery.
type NotifyConfig struct {
	InsertBatch        int    // NOTIFY_INSERT_BATCH rows per INSERT
	PushBatchSize      int    // PUSH_BATCH_SIZE tokens per provider call (<= 500)
	FCMCredentialsFile string // FCM_CREDENTIALS_FILE; empty logs pushes instead of sending
}

// EventsConfig selects and tunes the domain event transport. An empty
// AMQPURL keeps events in process.
type EventsConfig struct {
	AMQPURL      string // AMQP_URL
	AMQPExchange string // AMQP_EXCHANGE
	AMQPQueue    string // AMQP_QUEUE
	QueueSize    int    // EVENT_QUEUE_SIZE (in-process buffer)
	Workers      int    // EVENT_WORKERS
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Database
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path
	DatabaseURL string // Postgres DSN

	// Domain
	Deals  DealsConfig
	Notify NotifyConfig
	Events EventsConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Request body limit in bytes
	MaxBodyBytes int64

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables. Unset or unparsable
// values fall back to defaults; the result is normalized and validated, and
// the config is returned alongside any validation error.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              envString("PORT", "8080"),
		ReadTimeout:       envDuration("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: envDuration("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      envDuration("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       envDuration("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    envInt("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(envString("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(envString("LOG_LEVEL", "info")),
		LogPretty:      envBool("LOG_PRETTY", false),
		SwaggerEnabled: envBool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(envString("API_BASE_PATH", "/api/v1")),

		// Database
		DBDriver:    strings.ToLower(envString("DB_DRIVER", "sqlite")),
		DBPath:      envString("DB_PATH", "realty.db"),
		DatabaseURL: envString("DATABASE_URL", ""),

		// Domain
		Deals: DealsConfig{
			DefaultCommissionRate: envFloat("DEFAULT_COMMISSION_RATE", 5.0),
			PriceDropThreshold:    envFloat("PRICE_DROP_THRESHOLD", 0.1),
			PriceDropCooldown:     envDuration("PRICE_DROP_COOLDOWN", 6*time.Hour),
		},
		Notify: NotifyConfig{
			InsertBatch:        envInt("NOTIFY_INSERT_BATCH", 500),
			PushBatchSize:      envInt("PUSH_BATCH_SIZE", 500),
			FCMCredentialsFile: envString("FCM_CREDENTIALS_FILE", ""),
		},
		Events: EventsConfig{
			AMQPURL:      envString("AMQP_URL", ""),
			AMQPExchange: envString("AMQP_EXCHANGE", "realty.events"),
			AMQPQueue:    envString("AMQP_QUEUE", "realty.notifications"),
			QueueSize:    envInt("EVENT_QUEUE_SIZE", 256),
			Workers:      envInt("EVENT_WORKERS", 2),
		},

		// Rate limiting
		RateRPS:   envFloat("RATE_RPS", 5.0),
		RateBurst: envInt("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: envList("CORS_ALLOWED_ORIGINS"),
		},
		Security: SecurityConfig{
			EnableHSTS: envBool("ENABLE_HSTS", false),
			HSTSMaxAge: envDuration("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		MaxBodyBytes: int64(envInt("MAX_BODY_BYTES", 1<<20)),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     envBool("OTEL_ENABLED", false),
			Endpoint:    envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: envString("OTEL_SERVICE_NAME", "realtyd"),
			SampleRatio: envFloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	cfg.normalize()
	return cfg, cfg.Validate()
}
