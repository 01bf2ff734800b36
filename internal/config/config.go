// Package config loads the server configuration: built-in defaults, overlaid by an
// optional YAML file (with ${VAR:default} expansion), overlaid by plain environment
// variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/config"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverJSONFile = "jsonfile"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver      string      `yaml:"driver"`
	SQLitePath  string      `yaml:"sqlite_path"`
	JSONPath    string      `yaml:"json_path"`
	PostgresDSN string      `yaml:"postgres_dsn"`
	Redis       RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LedgerConfig struct {
	// Timezone is an IANA name ("America/Sao_Paulo") or "Local".
	Timezone      string `yaml:"timezone"`
	RetentionDays int    `yaml:"retention_days"`
	// PurgeSchedule is a cron spec for the history purge job.
	PurgeSchedule string `yaml:"purge_schedule"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file or variable says otherwise.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Driver:     DriverSQLite,
			SQLitePath: "data/confirmations.db",
			JSONPath:   "data/confirmations.json",
			Redis:      RedisConfig{Addr: "localhost:6379"},
		},
		Ledger: LedgerConfig{
			Timezone:      "Local",
			RetentionDays: 30,
			PurgeSchedule: "5 0 * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. path may be empty or point at a missing file, in
// which case only defaults and environment variables apply.
func Load(path string) (*Config, error) {
	opts := []config.YAMLOption{
		config.Static(Default()),
		config.Expand(os.LookupEnv),
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			opts = append(opts, config.File(path))
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: checking %s: %w", path, err)
		}
	}

	provider, err := config.NewYAML(opts...)
	if err != nil {
		return nil, fmt.Errorf("config: creating provider: %w", err)
	}

	var cfg Config
	if err := provider.Get(config.Root).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("config: populating: %w", err)
	}

	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) overrideFromEnv() error {
	if val := os.Getenv("PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q: %w", val, err)
		}
		c.Server.Port = port
	}
	if val := os.Getenv("STORAGE_DRIVER"); val != "" {
		c.Storage.Driver = val
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		c.Storage.SQLitePath = val
	}
	if val := os.Getenv("DATA_FILE"); val != "" {
		c.Storage.JSONPath = val
	}
	if val := os.Getenv("DATABASE_URL"); val != "" {
		c.Storage.PostgresDSN = val
	}
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Storage.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Storage.Redis.Password = val
	}
	if val := os.Getenv("TIMEZONE"); val != "" {
		c.Ledger.Timezone = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Logging.Format = val
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("config: storage.sqlite_path is required for the sqlite driver")
		}
	case DriverJSONFile:
		if c.Storage.JSONPath == "" {
			return errors.New("config: storage.json_path is required for the jsonfile driver")
		}
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: storage.postgres_dsn is required for the postgres driver")
		}
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			return errors.New("config: storage.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}

	if _, err := c.Ledger.Location(); err != nil {
		return err
	}
	if c.Ledger.RetentionDays < 0 {
		return fmt.Errorf("config: ledger.retention_days must not be negative")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown logging.format %q", c.Logging.Format)
	}
	return nil
}

// Location resolves the ledger timezone.
func (l LedgerConfig) Location() (*time.Location, error) {
	if l.Timezone == "" || strings.EqualFold(l.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: invalid ledger.timezone %q: %w", l.Timezone, err)
	}
	return loc, nil
}
