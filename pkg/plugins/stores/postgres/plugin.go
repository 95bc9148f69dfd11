// Package postgres provides a plugin wrapper for the PostgreSQL store.
package postgres

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redcoatwright/privatebooks/pkg/api"
	pgstore "github.com/redcoatwright/privatebooks/pkg/store/postgres"
)

// Plugin implements the StorePlugin interface for PostgreSQL.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "postgres"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Store transactions in a PostgreSQL database"
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"dsn": map[string]any{
				"type":        "string",
				"description": "Full connection string; overrides the individual fields",
			},
			"host": map[string]any{
				"type":        "string",
				"description": "PostgreSQL host address",
				"default":     "localhost",
			},
			"port": map[string]any{
				"type":        "integer",
				"description": "PostgreSQL port",
				"default":     5432,
			},
			"database": map[string]any{
				"type":        "string",
				"description": "Database name",
				"default":     "privatebooks",
			},
			"user": map[string]any{
				"type":        "string",
				"description": "Database user",
			},
			"password": map[string]any{
				"type":        "string",
				"description": "Database password",
			},
			"sslmode": map[string]any{
				"type":        "string",
				"description": "SSL mode (disable, require, verify-ca, verify-full)",
				"default":     "disable",
				"enum":        []string{"disable", "require", "verify-ca", "verify-full"},
			},
			"maxPoolSize": map[string]any{
				"type":        "integer",
				"description": "Maximum number of connections in the pool (default: 10)",
				"default":     10,
			},
		},
		"required": []string{"host", "database", "user"},
	}
}

// Config represents the PostgreSQL store configuration.
type Config struct {
	DSN         string `json:"dsn,omitempty"`
	Host        string `json:"host"`
	Port        int    `json:"port,omitempty"`
	Database    string `json:"database"`
	User        string `json:"user"`
	Password    string `json:"password"`
	SSLMode     string `json:"sslmode,omitempty"`
	MaxPoolSize int    `json:"maxPoolSize,omitempty"`
}

// NewStore connects to PostgreSQL.
func (p *Plugin) NewStore(configData json.RawMessage, logger *slog.Logger) (api.Store, error) {
	var cfg Config
	if err := json.Unmarshal(configData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling postgres config: %w", err)
	}

	if cfg.DSN == "" {
		if cfg.Host == "" {
			return nil, fmt.Errorf("host is required")
		}
		if cfg.Database == "" {
			return nil, fmt.Errorf("database is required")
		}
		if cfg.User == "" {
			return nil, fmt.Errorf("user is required")
		}
	}

	return pgstore.New(pgstore.Config{
		DSN:         cfg.DSN,
		Host:        cfg.Host,
		Port:        cfg.Port,
		Database:    cfg.Database,
		User:        cfg.User,
		Password:    cfg.Password,
		SSLMode:     cfg.SSLMode,
		MaxPoolSize: cfg.MaxPoolSize,
	}, logger)
}
