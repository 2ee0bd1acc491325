package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const adminKey = "486d5f6d4891f4ce3cd5f4d6b62d184ec8ea10db455830ab7918ca43d4d7ad24"

func TestExampleMatchesDefaults(t *testing.T) {
	data, err := GetExampleConfig()
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	require.Equal(t, *Default(), cfg)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ditto.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://ditto@localhost/ditto
admin_key: `+adminKey+`
query:
  max_limit: 100
realtime:
  notifier: redis
  redis_url: redis://localhost:6379/0
policy:
  mode: strict
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "postgres://ditto@localhost/ditto", cfg.DatabaseURL)
	require.Equal(t, 100, cfg.Query.MaxLimit)
	require.Equal(t, 5*time.Second, cfg.Query.Timeout)
	require.Equal(t, "redis", cfg.Realtime.Notifier)
	require.Equal(t, "strict", cfg.Policy.Mode)

	sk, err := cfg.AdminSecretKey()
	require.NoError(t, err)
	require.Equal(t, adminKey, sk.Hex())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DITTO_ADMIN_KEY", adminKey)
	t.Setenv("DATABASE_URL", "/var/lib/ditto/events.db")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/var/lib/ditto/events.db", cfg.DatabaseURL)
	require.Equal(t, adminKey, cfg.AdminKey)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(*Config)
		err    string
	}{
		{"no admin key", func(c *Config) { c.AdminKey = "" }, "admin_key"},
		{"bad admin key", func(c *Config) { c.AdminKey = "nsec1xyz" }, "admin_key"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "invalid log level"},
		{"notifier", func(c *Config) { c.Realtime.Notifier = "kafka" }, "invalid notifier"},
		{"redis url", func(c *Config) { c.Realtime.Notifier = "redis" }, "redis_url"},
		{"plugin", func(c *Config) { c.Policy.Mode = "plugin" }, "policy.command"},
		{"workers", func(c *Config) { c.Ingest.VerifyWorkers = 0 }, "verify_workers"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.AdminKey = adminKey
			require.NoError(t, Validate(cfg))

			tc.modify(cfg)
			require.ErrorContains(t, Validate(cfg), tc.err)
		})
	}
}
