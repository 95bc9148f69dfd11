package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PRIVATEBOOKS_STORE", "")
	t.Setenv("PRIVATEBOOKS_DB_PATH", "")
	t.Setenv("PRIVATEBOOKS_HTTP_ADDR", "")
	t.Setenv("PRIVATEBOOKS_STORE_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Empty(t, cfg.StoreConfig)

	raw, err := cfg.StorePluginConfig()
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"privatebooks.db"}`, string(raw))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"PRIVATEBOOKS_DB_PATH": "from-file.db",
		"PRIVATEBOOKS_RULES_FILE": "rules.yaml",
		"PRIVATEBOOKS_STORE_CONFIG": {"path": "nested.db"}
	}`), 0o600))

	t.Setenv("PRIVATEBOOKS_DB_PATH", "from-env.db")
	t.Setenv("PRIVATEBOOKS_STORE", "")
	t.Setenv("PRIVATEBOOKS_RULES_FILE", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", cfg.DBPath)
	assert.JSONEq(t, `{"path":"nested.db"}`, string(cfg.StoreConfig))
}

func TestLoad_Postgres(t *testing.T) {
	t.Setenv("PRIVATEBOOKS_STORE", "postgres")
	t.Setenv("PRIVATEBOOKS_STORE_CONFIG", "")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "5433")
	t.Setenv("POSTGRES_DB", "books")
	t.Setenv("POSTGRES_USER", "books")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_SSLMODE", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5433, cfg.Postgres.Port)

	raw, err := cfg.StorePluginConfig()
	require.NoError(t, err)
	assert.JSONEq(t, `{"host":"db","port":5433,"database":"books","user":"books","password":"secret"}`, string(raw))
}

func TestLoad_Errors(t *testing.T) {
	t.Run("unknown store", func(t *testing.T) {
		t.Setenv("PRIVATEBOOKS_STORE", "mongo")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown store "mongo"`)
	})

	t.Run("invalid store config", func(t *testing.T) {
		t.Setenv("PRIVATEBOOKS_STORE", "")
		t.Setenv("PRIVATEBOOKS_STORE_CONFIG", "{not json")
		_, err := Load("")
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})
}

func TestStorePluginConfig_PostgresRequiresHost(t *testing.T) {
	cfg := Config{Store: StorePostgres}
	_, err := cfg.StorePluginConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_HOST")
}
