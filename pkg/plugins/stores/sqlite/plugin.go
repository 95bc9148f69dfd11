// Package sqlite provides a plugin wrapper for the SQLite store.
package sqlite

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redcoatwright/privatebooks/pkg/api"
	sqlitestore "github.com/redcoatwright/privatebooks/pkg/store/sqlite"
)

// Plugin implements the StorePlugin interface for SQLite.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "sqlite"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Store transactions in a local SQLite database file"
}

// ConfigSchema returns a JSON schema describing the plugin's configuration.
func (p *Plugin) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to the database file",
				"default":     "privatebooks.db",
			},
			"busyTimeout": map[string]any{
				"type":        "integer",
				"description": "Milliseconds to wait on a locked database (default: 5000)",
				"default":     5000,
			},
			"busyRetries": map[string]any{
				"type":        "integer",
				"description": "Write attempts while the database stays busy (default: 3)",
				"default":     3,
			},
		},
		"required": []string{"path"},
	}
}

// Config represents the SQLite store configuration.
type Config struct {
	Path        string `json:"path"`
	BusyTimeout int    `json:"busyTimeout,omitempty"` // in milliseconds
	BusyRetries uint   `json:"busyRetries,omitempty"`
}

// NewStore opens a SQLite store.
func (p *Plugin) NewStore(configData json.RawMessage, logger *slog.Logger) (api.Store, error) {
	var cfg Config
	if err := json.Unmarshal(configData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling sqlite config: %w", err)
	}

	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	return sqlitestore.New(sqlitestore.Config{
		Path:        cfg.Path,
		BusyTimeout: time.Duration(cfg.BusyTimeout) * time.Millisecond,
		BusyRetries: cfg.BusyRetries,
	}, logger)
}
