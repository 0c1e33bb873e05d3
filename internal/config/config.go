package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/claude/chalkline/internal/metrics"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Snapshots SnapshotsConfig `yaml:"snapshots"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// LogConfig controls the process logger. When File is set, records are also
// written to a size-rotated file.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type MetricsConfig struct {
	Weights     *metrics.Weights `yaml:"weights"`
	LoadBasis   string           `yaml:"load_basis"`
	HistoryDays int              `yaml:"history_days"`
}

// EngineOptions converts the metrics section into engine options.
func (m MetricsConfig) EngineOptions() metrics.Options {
	opts := metrics.DefaultOptions()
	if m.Weights != nil {
		opts.Weights = *m.Weights
	}
	if basis, err := metrics.ParseLoadBasis(m.LoadBasis); err == nil {
		opts.LoadBasis = basis
	}
	return opts
}

type SnapshotsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// DefaultSnapshotCron runs the nightly snapshot at 03:05:00.
const DefaultSnapshotCron = "0 5 3 * * *"

// CronParser accepts six-field specs with a leading seconds field.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix CHALKLINE_ and underscore-separated paths:
//
//	CHALKLINE_SERVER_HOST, CHALKLINE_SERVER_PORT,
//	CHALKLINE_DB_HOST, CHALKLINE_DB_PORT, CHALKLINE_DB_NAME,
//	CHALKLINE_DB_USER, CHALKLINE_DB_PASSWORD, CHALKLINE_DB_SSLMODE,
//	CHALKLINE_AUTH_API_KEY, CHALKLINE_TAILSCALE_ENABLED,
//	CHALKLINE_LOG_LEVEL, CHALKLINE_LOG_FORMAT, CHALKLINE_LOG_FILE,
//	CHALKLINE_METRICS_LOAD_BASIS, CHALKLINE_SNAPSHOTS_CRON
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHALKLINE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("CHALKLINE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CHALKLINE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("CHALKLINE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("CHALKLINE_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("CHALKLINE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("CHALKLINE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("CHALKLINE_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("CHALKLINE_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("CHALKLINE_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	if v := os.Getenv("CHALKLINE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CHALKLINE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("CHALKLINE_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("CHALKLINE_METRICS_LOAD_BASIS"); v != "" {
		cfg.Metrics.LoadBasis = v
	}
	if v := os.Getenv("CHALKLINE_SNAPSHOTS_CRON"); v != "" {
		cfg.Snapshots.Cron = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "chalkline"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 50
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Metrics.HistoryDays == 0 {
		cfg.Metrics.HistoryDays = 90
	}
	if cfg.Snapshots.Cron == "" {
		cfg.Snapshots.Cron = DefaultSnapshotCron
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if _, err := metrics.ParseLoadBasis(c.Metrics.LoadBasis); err != nil {
		return fmt.Errorf("metrics.load_basis: %w", err)
	}
	if w := c.Metrics.Weights; w != nil && !w.Valid() {
		return fmt.Errorf("metrics.weights must be non-negative with a positive sum")
	}
	if c.Metrics.HistoryDays < 0 {
		return fmt.Errorf("metrics.history_days must not be negative")
	}
	if _, err := CronParser.Parse(c.Snapshots.Cron); err != nil {
		return fmt.Errorf("snapshots.cron: %w", err)
	}
	return nil
}
