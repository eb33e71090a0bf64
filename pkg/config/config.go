package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:clipmark.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Schedule ScheduleConfig `yaml:"schedule" json:"schedule" jsonschema:"description=Background import scheduler configuration"`

	Import ImportConfig `yaml:"import" json:"import" jsonschema:"description=Per-source import configuration"`
}

// ScheduleConfig holds background scheduler settings. All cadence values are
// operator-tunable rather than baked into the loop.
type ScheduleConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" jsonschema:"default=1h,description=Cadence of scheduled import runs and freshness window for due sources"`
	ErrorBackoff time.Duration `yaml:"error_backoff" json:"error_backoff" jsonschema:"default=5m,description=Sleep after a failed run before retrying"`
	SourcePacing time.Duration `yaml:"source_pacing" json:"source_pacing" jsonschema:"default=1s,description=Pause between consecutive sources in a run"`
	MaxErrors    int           `yaml:"max_errors" json:"max_errors" jsonschema:"default=5,description=Consecutive failure count that removes a source from scheduled runs"`
}

// ImportConfig holds per-source import settings
type ImportConfig struct {
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout" jsonschema:"default=30s,description=Overall timeout for one source fetch"`
	MaxFeedItems int           `yaml:"max_feed_items" json:"max_feed_items" jsonschema:"default=20,description=Maximum feed entries considered per import"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Clipmark/1.0,description=User agent for source fetches"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, used when no
// config file is given
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	if c.Database.DSN == "" {
		c.Database.DSN = "file:clipmark.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	if c.Schedule.PollInterval == 0 {
		c.Schedule.PollInterval = time.Hour
	}
	if c.Schedule.ErrorBackoff == 0 {
		c.Schedule.ErrorBackoff = 5 * time.Minute
	}
	if c.Schedule.SourcePacing == 0 {
		c.Schedule.SourcePacing = time.Second
	}
	if c.Schedule.MaxErrors == 0 {
		c.Schedule.MaxErrors = 5
	}

	if c.Import.FetchTimeout == 0 {
		c.Import.FetchTimeout = 30 * time.Second
	}
	if c.Import.MaxFeedItems == 0 {
		c.Import.MaxFeedItems = 20
	}
	if c.Import.UserAgent == "" {
		c.Import.UserAgent = "Clipmark/1.0"
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	if cfg.Schedule.PollInterval < time.Minute {
		return fmt.Errorf("schedule.poll_interval must be at least 1 minute")
	}
	if cfg.Schedule.ErrorBackoff < time.Second {
		return fmt.Errorf("schedule.error_backoff must be at least 1 second")
	}
	if cfg.Schedule.MaxErrors < 1 {
		return fmt.Errorf("schedule.max_errors must be at least 1")
	}

	if cfg.Import.FetchTimeout < time.Second {
		return fmt.Errorf("import.fetch_timeout must be at least 1 second")
	}
	if cfg.Import.MaxFeedItems < 1 {
		return fmt.Errorf("import.max_feed_items must be at least 1")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}
