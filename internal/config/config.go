// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`

	CarsServiceURL    string `env:"CARS_SERVICE_URL" envDefault:"http://cars:8070"`
	RentalServiceURL  string `env:"RENTAL_SERVICE_URL" envDefault:"http://rental:8060"`
	PaymentServiceURL string `env:"PAYMENT_SERVICE_URL" envDefault:"http://payment:8050"`

	// UpstreamTimeout bounds every outbound call made through the upstream client.
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"5s"`

	CarsBreakerFailureThreshold    int           `env:"CARS_BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	RentalBreakerFailureThreshold  int           `env:"RENTAL_BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	PaymentBreakerFailureThreshold int           `env:"PAYMENT_BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	CarsBreakerOpenTimeout         time.Duration `env:"CARS_BREAKER_OPEN_TIMEOUT" envDefault:"60s"`
	RentalBreakerOpenTimeout       time.Duration `env:"RENTAL_BREAKER_OPEN_TIMEOUT" envDefault:"60s"`
	PaymentBreakerOpenTimeout      time.Duration `env:"PAYMENT_BREAKER_OPEN_TIMEOUT" envDefault:"60s"`

	RetryQueueInterval    time.Duration `env:"RETRY_QUEUE_INTERVAL" envDefault:"30s"`
	RetryQueueMaxAttempts int           `env:"RETRY_QUEUE_MAX_ATTEMPTS" envDefault:"5"`

	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"60"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// BreakerSettings describes the failure threshold and open timeout for one named upstream.
type BreakerSettings struct {
	Name             string
	FailureThreshold int
	OpenTimeout      time.Duration
}

// Breakers returns the per-upstream breaker configuration for the three canonical
// breaker names used by the Gateway.
func (c Config) Breakers() []BreakerSettings {
	return []BreakerSettings{
		{Name: "cars_service", FailureThreshold: c.CarsBreakerFailureThreshold, OpenTimeout: c.CarsBreakerOpenTimeout},
		{Name: "rental_service", FailureThreshold: c.RentalBreakerFailureThreshold, OpenTimeout: c.RentalBreakerOpenTimeout},
		{Name: "payment_service", FailureThreshold: c.PaymentBreakerFailureThreshold, OpenTimeout: c.PaymentBreakerOpenTimeout},
	}
}
