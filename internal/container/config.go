// Package container provides dependency injection and lifecycle management
// for the purchase order approval route service.
package container

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Lark     LarkConfig
	Server   ServerConfig
	Approval ApprovalConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file, or ":memory:"
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LarkConfig holds Lark IM settings used for notification delivery.
type LarkConfig struct {
	// Enabled switches delivery from the log sender to Lark
	Enabled bool

	AppID     string
	AppSecret string

	// BaseURL overrides the SDK default endpoint
	BaseURL string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ApprovalConfig holds approval route defaults.
type ApprovalConfig struct {
	// DefaultCurrency is used for companies created without a currency
	DefaultCurrency string

	// LogEvents subscribes a handler that logs every committed domain event
	LogEvents bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/approval.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Approval: ApprovalConfig{
			DefaultCurrency: "USD",
			LogEvents:       true,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required when lark is enabled")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when lark is enabled")
		}
	}

	if code := strings.TrimSpace(c.Approval.DefaultCurrency); code != "" && len(code) != 3 {
		return fmt.Errorf("approval.default_currency must be a 3-letter code: %q", code)
	}

	return nil
}
