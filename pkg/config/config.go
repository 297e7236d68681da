package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Sync modes
const (
	SyncLocal  = "local"
	SyncPoll   = "poll"
	SyncPubSub = "pubsub"
)

type Config struct {
	Port string `yaml:"port" env:"PORT" env-default:"8080"`

	StorageDriver     string `yaml:"storage_driver" env:"STORAGE_DRIVER" env-default:"sqlite"`
	DatabaseURL       string `yaml:"database_url" env:"DATABASE_URL" env-default:"tasktimer.db"`
	StorageQuotaBytes int    `yaml:"storage_quota_bytes" env:"STORAGE_QUOTA_BYTES" env-default:"5242880"`

	SyncMode         string        `yaml:"sync_mode" env:"SYNC_MODE" env-default:"poll"`
	SyncPollInterval time.Duration `yaml:"sync_poll_interval" env:"SYNC_POLL_INTERVAL" env-default:"2s"`

	GoogleProjectID   string `yaml:"google_project_id" env:"GOOGLE_PROJECT_ID"`
	GooglePubSubTopic string `yaml:"google_pubsub_topic" env:"GOOGLE_PUBSUB_TOPIC" env-default:"tasktimer-changes"`
	GoogleCredentials string `yaml:"google_credentials" env:"GOOGLE_CREDENTIALS"`

	TickInterval    time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL" env-default:"1s"`
	DefaultSortMode string        `yaml:"default_sort_mode" env:"DEFAULT_SORT_MODE" env-default:"created_desc"`

	AssetOrigin      string   `yaml:"asset_origin" env:"ASSET_ORIGIN"`
	AssetCacheLimit  int      `yaml:"asset_cache_limit" env:"ASSET_CACHE_LIMIT" env-default:"24"`
	AssetOfflinePage string   `yaml:"asset_offline_page" env:"ASSET_OFFLINE_PAGE" env-default:"/offline.html"`
	AssetShell       []string `yaml:"asset_shell" env:"ASSET_SHELL" env-separator:","`
}

// Load reads .env if present, then the YAML file at path, then the
// environment. A missing file is not an error; the environment alone is used.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read env: %w", err)
		}
		return &cfg, cfg.Validate()
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return nil, fmt.Errorf("cannot read config %q: %w", path, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read env: %w", err)
		}
	}
	return &cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	switch c.SyncMode {
	case SyncLocal, SyncPoll:
	case SyncPubSub:
		if c.GoogleProjectID == "" {
			return errors.New("sync mode pubsub needs GOOGLE_PROJECT_ID")
		}
	default:
		return fmt.Errorf("unknown sync mode %q", c.SyncMode)
	}
	if c.StorageDriver == DriverPostgres && c.DatabaseURL == "" {
		return errors.New("storage driver postgres needs DATABASE_URL")
	}
	return nil
}
