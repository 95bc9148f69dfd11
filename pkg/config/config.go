// Package config loads privatebooks settings from an optional JSON file and the environment.
package config

import (
	"encoding/json"
	"fmt"

	kJson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Defaults applied when nothing is configured.
const (
	DefaultDBPath   = "privatebooks.db"
	DefaultHTTPAddr = "127.0.0.1:8080"
)

const storeConfigKey = "PRIVATEBOOKS_STORE_CONFIG"

// Config holds the application configuration.
type Config struct {
	// Store is the name of the store plugin to use.
	// Environment variable: PRIVATEBOOKS_STORE
	Store string `koanf:"PRIVATEBOOKS_STORE"`

	// StoreConfig is the JSON configuration for the store plugin. In a config
	// file it may be given as a nested object.
	// Environment variable: PRIVATEBOOKS_STORE_CONFIG
	StoreConfig json.RawMessage `koanf:"-"`

	// DBPath is the SQLite database file used when no store config is given.
	// Environment variable: PRIVATEBOOKS_DB_PATH
	DBPath string `koanf:"PRIVATEBOOKS_DB_PATH"`

	// RulesFile optionally replaces the built-in categorization rules.
	// Environment variable: PRIVATEBOOKS_RULES_FILE
	RulesFile string `koanf:"PRIVATEBOOKS_RULES_FILE"`

	// HTTPAddr is the listen address of the HTTP bridge.
	// Environment variable: PRIVATEBOOKS_HTTP_ADDR
	HTTPAddr string `koanf:"PRIVATEBOOKS_HTTP_ADDR"`

	// Password unlocks a password-protected store for CLI commands.
	// Environment variable: PRIVATEBOOKS_PASSWORD
	Password string `koanf:"PRIVATEBOOKS_PASSWORD"`

	// PostgreSQL connection, used by the postgres store when no store config is given.
	Postgres PostgresConfig `koanf:",squash"`
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string `koanf:"POSTGRES_HOST"`
	Port     int    `koanf:"POSTGRES_PORT"`
	Database string `koanf:"POSTGRES_DB"`
	User     string `koanf:"POSTGRES_USER"`
	Password string `koanf:"POSTGRES_PASSWORD"`
	SSLMode  string `koanf:"POSTGRES_SSLMODE"`
}

// Load reads the config file at path, if path is non-empty, then overlays the environment.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), kJson.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config file: %w", err)
		}
	}
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	raw, err := storeConfig(k.Get(storeConfigKey))
	if err != nil {
		return Config{}, err
	}
	cfg.StoreConfig = raw

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// storeConfig accepts the store config as a JSON string or as a nested object.
func storeConfig(v any) (json.RawMessage, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if val == "" {
			return nil, nil
		}
		if !json.Valid([]byte(val)) {
			return nil, fmt.Errorf("%s is not valid JSON", storeConfigKey)
		}
		return json.RawMessage(val), nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", storeConfigKey, err)
		}
		return b, nil
	}
}

func (c *Config) applyDefaults() {
	if c.Store == "" {
		c.Store = StoreSQLite
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
}

// Validate checks that the selected store is known.
func (c Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StorePostgres:
		return nil
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreSQLite, StorePostgres)
	}
}

// StorePluginConfig returns the store plugin configuration. An explicit
// PRIVATEBOOKS_STORE_CONFIG wins; otherwise one is built from DBPath or the
// POSTGRES_* variables.
func (c Config) StorePluginConfig() (json.RawMessage, error) {
	if len(c.StoreConfig) > 0 {
		return c.StoreConfig, nil
	}

	switch c.Store {
	case StorePostgres:
		pg := c.Postgres
		if pg.Host == "" {
			return nil, fmt.Errorf("POSTGRES_HOST is required")
		}
		if pg.Database == "" {
			return nil, fmt.Errorf("POSTGRES_DB is required")
		}
		if pg.User == "" {
			return nil, fmt.Errorf("POSTGRES_USER is required")
		}

		cfg := map[string]any{
			"host":     pg.Host,
			"database": pg.Database,
			"user":     pg.User,
			"password": pg.Password,
		}
		if pg.Port != 0 {
			cfg["port"] = pg.Port
		}
		if pg.SSLMode != "" {
			cfg["sslmode"] = pg.SSLMode
		}
		return json.Marshal(cfg)
	default:
		return json.Marshal(map[string]any{"path": c.DBPath})
	}
}
