// Package config holds the relay settings read from a YAML file, with defaults for everything
// and environment overrides for secrets.
package config

import (
	"embed"
	"fmt"
	"os"
	"time"

	nostr "github.com/soapbox-pub/ditto-sub000"
	"gopkg.in/yaml.v3"
)

//go:embed example.yaml
var exampleConfig embed.FS

type Config struct {
	Listen      string `yaml:"listen"`
	ServiceURL  string `yaml:"service_url"`
	DatabaseURL string `yaml:"database_url"`

	// AdminKey is the hex secret key of the relay. Prefer the DITTO_ADMIN_KEY variable.
	AdminKey string `yaml:"admin_key"`

	Logging      Logging      `yaml:"logging"`
	Info         Info         `yaml:"info"`
	Query        Query        `yaml:"query"`
	Ingest       Ingest       `yaml:"ingest"`
	Realtime     Realtime     `yaml:"realtime"`
	Search       Search       `yaml:"search"`
	Policy       Policy       `yaml:"policy"`
	NIP05        NIP05        `yaml:"nip05"`
	LinkPreviews LinkPreviews `yaml:"link_previews"`
}

type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// Info is published in the NIP-11 document.
type Info struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Contact     string `yaml:"contact"`
	Icon        string `yaml:"icon"`
	Banner      string `yaml:"banner"`
}

type Query struct {
	Timeout   time.Duration `yaml:"timeout"`
	MaxLimit  int           `yaml:"max_limit"`
	ChunkSize int           `yaml:"chunk_size"`
}

type Ingest struct {
	VerifyWorkers     int           `yaml:"verify_workers"`
	VerifyTimeout     time.Duration `yaml:"verify_timeout"`
	SeenCacheSize     int           `yaml:"seen_cache_size"`
	MaxFuture         time.Duration `yaml:"max_future"`
	MaxEphemeralAge   time.Duration `yaml:"max_ephemeral_age"`
	SideEffectTimeout time.Duration `yaml:"side_effect_timeout"`
}

type Realtime struct {
	// Notifier is how processes tell each other about new events: local, postgres or redis.
	Notifier string        `yaml:"notifier"`
	RedisURL string        `yaml:"redis_url"`
	MaxAge   time.Duration `yaml:"max_age"`
	Buffer   int           `yaml:"buffer"`
}

type Search struct {
	// IndexPath enables the full-text index. "memory" keeps it in memory.
	IndexPath string `yaml:"index_path"`
}

type Policy struct {
	// Mode is none, strict or plugin.
	Mode    string        `yaml:"mode"`
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

type NIP05 struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	Timeout time.Duration `yaml:"timeout"`
}

type LinkPreviews struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	Timeout time.Duration `yaml:"timeout"`
}

func Default() *Config {
	return &Config{
		Listen:      ":4036",
		DatabaseURL: "ditto.db",
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
		Info: Info{
			Name:        "Ditto",
			Description: "Nostr relay",
		},
		Query: Query{
			Timeout:   5 * time.Second,
			MaxLimit:  500,
			ChunkSize: 20,
		},
		Ingest: Ingest{
			VerifyWorkers:     4,
			VerifyTimeout:     5 * time.Second,
			SeenCacheSize:     10_000,
			MaxFuture:         time.Minute,
			MaxEphemeralAge:   time.Minute,
			SideEffectTimeout: 30 * time.Second,
		},
		Realtime: Realtime{
			Notifier: "local",
			MaxAge:   time.Minute,
			Buffer:   256,
		},
		Policy: Policy{
			Mode:    "none",
			Timeout: 5 * time.Second,
		},
		NIP05: NIP05{
			Enabled: true,
			TTL:     time.Hour,
			Timeout: 5 * time.Second,
		},
		LinkPreviews: LinkPreviews{
			Enabled: true,
			TTL:     12 * time.Hour,
			Timeout: 5 * time.Second,
		},
	}
}

// Load reads the file at path on top of the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("DITTO_ADMIN_KEY"); key != "" {
		cfg.AdminKey = key
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.DatabaseURL = url
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Realtime.RedisURL = url
	}
}

// GetExampleConfig returns the embedded example configuration
func GetExampleConfig() ([]byte, error) {
	return exampleConfig.ReadFile("example.yaml")
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"console": true, "json": true}
	validNotifiers  = map[string]bool{"local": true, "postgres": true, "redis": true}
	validPolicies   = map[string]bool{"none": true, "strict": true, "plugin": true}
)

func Validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	if _, err := cfg.AdminSecretKey(); err != nil {
		return fmt.Errorf("admin_key: %w", err)
	}

	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", cfg.Logging.Level)
	}
	if !validLogFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be one of: console, json)", cfg.Logging.Format)
	}

	if !validNotifiers[cfg.Realtime.Notifier] {
		return fmt.Errorf("invalid notifier: %s (must be one of: local, postgres, redis)", cfg.Realtime.Notifier)
	}
	if cfg.Realtime.Notifier == "redis" && cfg.Realtime.RedisURL == "" {
		return fmt.Errorf("realtime.redis_url is required by the redis notifier")
	}

	if !validPolicies[cfg.Policy.Mode] {
		return fmt.Errorf("invalid policy mode: %s (must be one of: none, strict, plugin)", cfg.Policy.Mode)
	}
	if cfg.Policy.Mode == "plugin" && cfg.Policy.Command == "" {
		return fmt.Errorf("policy.command is required in plugin mode")
	}

	if cfg.Ingest.VerifyWorkers < 1 {
		return fmt.Errorf("ingest.verify_workers must be at least 1")
	}
	if cfg.Ingest.SeenCacheSize < 1 {
		return fmt.Errorf("ingest.seen_cache_size must be at least 1")
	}
	if cfg.Query.MaxLimit < 1 {
		return fmt.Errorf("query.max_limit must be at least 1")
	}

	return nil
}

func (cfg *Config) AdminSecretKey() (nostr.SecretKey, error) {
	if cfg.AdminKey == "" {
		return nostr.SecretKey{}, fmt.Errorf("no admin key configured")
	}
	return nostr.SecretKeyFromHex(cfg.AdminKey)
}
