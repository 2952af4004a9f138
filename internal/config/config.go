// Package config provides YAML-based configuration loading for the relay.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// RELAY_SERVER_PORT or RELAY_RATE_LIMIT_MAX_ATTEMPTS.
const EnvPrefix = "RELAY"

// Config is the top-level relay configuration, loaded from relay.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"server"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"database"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"rate_limit"`
	Broadcast BroadcastConfig `yaml:"broadcast" envconfig:"broadcast"`
	Bridges   BridgesConfig   `yaml:"bridges" envconfig:"bridges"`
	Log       LogConfig       `yaml:"log" envconfig:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Timezone        string        `yaml:"timezone"`
	TrustedProxies  []string      `yaml:"trusted_proxies" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// DatabaseConfig selects and configures the message store.
type DatabaseConfig struct {
	Driver   string        `yaml:"driver"`
	Path     string        `yaml:"path"`
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Name     string        `yaml:"name"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RateLimitConfig controls the per-identity ingestion throttle.
type RateLimitConfig struct {
	MaxAttempts   int           `yaml:"max_attempts" split_words:"true"`
	Decay         time.Duration `yaml:"decay"`
	Store         string        `yaml:"store"`
	PruneSchedule string        `yaml:"prune_schedule" split_words:"true"`
}

// BroadcastConfig tunes the in-process pub/sub hub.
type BroadcastConfig struct {
	Buffer    int           `yaml:"buffer"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// BridgesConfig lists optional external chat platforms that mirror messages.
type BridgesConfig struct {
	RatePerSec float64      `yaml:"rate_per_sec" split_words:"true"`
	Slack      BridgeTarget `yaml:"slack"`
	Discord    BridgeTarget `yaml:"discord"`
}

// BridgeTarget configures a single platform bridge. A target with neither a
// token nor a channel is disabled.
type BridgeTarget struct {
	BotToken  string   `yaml:"bot_token" split_words:"true"`
	ChannelID string   `yaml:"channel_id" split_words:"true"`
	Channels  []string `yaml:"channels"`
}

// Enabled reports whether the target has been configured at all.
func (b BridgeTarget) Enabled() bool {
	return b.BotToken != "" || b.ChannelID != ""
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverBadger = "badger"
)

// Rate-limit counter stores.
const (
	StoreMemory   = "memory"
	StoreDatabase = "database"
)

// Load reads a YAML config file from path, applies environment overrides,
// and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config. Environment
// variables prefixed with RELAY_ override values from the file.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: env overrides: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with every default applied, used when no config
// file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Location resolves the configured display timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Server.Timezone, err)
	}
	return loc, nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Timezone == "" {
		c.Server.Timezone = "UTC"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Path == "" {
		switch c.Database.Driver {
		case DriverSQLite:
			c.Database.Path = "relay.db"
		case DriverBadger:
			c.Database.Path = "relay-data"
		}
	}
	if c.Database.Driver == DriverMySQL {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "chatrelay"
		}
	}
	if c.Database.Timeout == 0 {
		c.Database.Timeout = 5 * time.Second
	}

	if c.RateLimit.MaxAttempts == 0 {
		c.RateLimit.MaxAttempts = 10
	}
	if c.RateLimit.Decay == 0 {
		c.RateLimit.Decay = time.Minute
	}
	if c.RateLimit.Store == "" {
		c.RateLimit.Store = StoreMemory
	}
	if c.RateLimit.PruneSchedule == "" {
		c.RateLimit.PruneSchedule = "*/5 * * * *"
	}

	if c.Broadcast.Buffer == 0 {
		c.Broadcast.Buffer = 64
	}
	if c.Broadcast.Heartbeat == 0 {
		c.Broadcast.Heartbeat = 15 * time.Second
	}

	if c.Bridges.RatePerSec == 0 {
		c.Bridges.RatePerSec = 1
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("server.timezone %q is unknown", c.Server.Timezone))
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverBadger:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required")
		}
	case DriverMySQL:
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be one of sqlite, mysql, badger", c.Database.Driver))
	}

	if c.RateLimit.MaxAttempts < 1 {
		errs = append(errs, "rate_limit.max_attempts must be positive")
	}
	if c.RateLimit.Decay < time.Second {
		errs = append(errs, "rate_limit.decay must be at least 1s")
	}
	switch c.RateLimit.Store {
	case StoreMemory:
	case StoreDatabase:
		if c.Database.Driver == DriverBadger {
			errs = append(errs, "rate_limit.store database requires a sql database driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("rate_limit.store %q must be memory or database", c.RateLimit.Store))
	}
	if _, err := cron.ParseStandard(c.RateLimit.PruneSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("rate_limit.prune_schedule: %v", err))
	}

	if c.Broadcast.Buffer < 1 {
		errs = append(errs, "broadcast.buffer must be positive")
	}

	for _, b := range []struct {
		name   string
		target BridgeTarget
	}{{"slack", c.Bridges.Slack}, {"discord", c.Bridges.Discord}} {
		if !b.target.Enabled() {
			continue
		}
		if b.target.BotToken == "" {
			errs = append(errs, fmt.Sprintf("bridges.%s.bot_token is required", b.name))
		}
		if b.target.ChannelID == "" {
			errs = append(errs, fmt.Sprintf("bridges.%s.channel_id is required", b.name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
