// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration.
type Config struct {
	Service  ServiceConfig
	Server   ServerConfig
	Database DatabaseConfig
	NATS     NATSConfig
	Analysis AnalysisConfig
	Auth     AuthConfig
	Payments PaymentsConfig
	Invites  InvitesConfig
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string `env:"SERVICE_NAME" envDefault:"be-talent-pipeline"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int           `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig controls the Postgres connection pool.
type DatabaseConfig struct {
	Host        string        `env:"DB_HOST" envDefault:"localhost"`
	Port        int           `env:"DB_PORT" envDefault:"5432"`
	User        string        `env:"DB_USER" envDefault:"postgres"`
	Password    string        `env:"DB_PASSWORD" envDefault:"postgres"`
	Database    string        `env:"DB_NAME" envDefault:"talent_pipeline"`
	SSLMode     string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns    int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns    int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnTime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	MaxIdleTime time.Duration `env:"DB_MAX_CONN_IDLE" envDefault:"5m"`
}

// NATSConfig controls the notification publisher connection.
type NATSConfig struct {
	URL string `env:"NATS_URL" envDefault:""`
}

// AnalysisConfig controls the analysis engine collaborator.
type AnalysisConfig struct {
	BaseURL string `env:"ANALYSIS_BASE_URL" envDefault:"http://localhost:8090"`
}

// AuthConfig controls JWT verification for authenticated routes.
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET,required"`
}

// PaymentsConfig controls the payment-processor collaborator.
type PaymentsConfig struct {
	BaseURL       string `env:"PAYMENTS_BASE_URL" envDefault:""`
	WebhookSecret string `env:"PAYMENTS_WEBHOOK_SECRET,required"`
}

// InvitesConfig controls invitation issuance.
type InvitesConfig struct {
	TTL       time.Duration `env:"INVITATION_TTL" envDefault:"168h"`
	AcceptURL string        `env:"INVITATION_ACCEPT_URL" envDefault:"https://app.devmatch.io/join"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
