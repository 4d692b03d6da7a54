package config

import (
	"errors"
	"strings"
)

func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
	if c.DBDriver == "postgresql" {
		c.DBDriver = "postgres"
	}
}

// Validate reports every invalid setting at once, joined into one error.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"))
	}

	// Server
	check(!blank(c.Port), "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	check(c.MaxBodyBytes > 0, "MAX_BODY_BYTES must be > 0")

	// Database
	switch c.DBDriver {
	case "sqlite":
		check(!blank(c.DBPath), "DB_PATH must not be empty")
	case "postgres":
		check(!blank(c.DatabaseURL), "DATABASE_URL must be set when DB_DRIVER=postgres")
	default:
		errs = append(errs, errors.New("DB_DRIVER must be one of: sqlite, postgres"))
	}

	// Domain
	check(c.Deals.DefaultCommissionRate >= 0 && c.Deals.DefaultCommissionRate <= 100,
		"DEFAULT_COMMISSION_RATE must be between 0 and 100")
	check(c.Deals.PriceDropThreshold > 0 && c.Deals.PriceDropThreshold <= 1, "PRICE_DROP_THRESHOLD must be in (0,1]")
	check(c.Deals.PriceDropCooldown >= 0, "PRICE_DROP_COOLDOWN must be >= 0")
	check(c.Notify.InsertBatch >= 1, "NOTIFY_INSERT_BATCH must be >= 1")
	check(c.Notify.PushBatchSize >= 1 && c.Notify.PushBatchSize <= 500, "PUSH_BATCH_SIZE must be between 1 and 500")
	check(c.Events.QueueSize >= 1, "EVENT_QUEUE_SIZE must be >= 1")
	check(c.Events.Workers >= 1, "EVENT_WORKERS must be >= 1")
	if c.Events.AMQPURL != "" {
		check(!blank(c.Events.AMQPExchange) && !blank(c.Events.AMQPQueue),
			"AMQP_EXCHANGE and AMQP_QUEUE must not be empty when AMQP_URL is set")
	}

	// Web protection
	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")

	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}
