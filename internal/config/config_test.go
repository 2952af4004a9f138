package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
server:
  host: 127.0.0.1
  port: 9090
  timezone: Europe/Paris
  trusted_proxies: ["10.0.0.0/8"]
  shutdown_timeout: 3s

database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  name: relay_prod
  user: relay
  password: secret
  timeout: 2s

rate_limit:
  max_attempts: 20
  decay: 30s
  store: database
  prune_schedule: "*/10 * * * *"

broadcast:
  buffer: 128
  heartbeat: 5s

bridges:
  rate_per_sec: 2
  slack:
    bot_token: xoxb-test
    channel_id: C01
    channels: [general, ops]

log:
  level: debug
  console: true
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Timezone != "Europe/Paris" {
		t.Errorf("Server.Timezone = %q, want Europe/Paris", cfg.Server.Timezone)
	}
	if len(cfg.Server.TrustedProxies) != 1 || cfg.Server.TrustedProxies[0] != "10.0.0.0/8" {
		t.Errorf("Server.TrustedProxies = %v", cfg.Server.TrustedProxies)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 3s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Database.Driver != DriverMySQL {
		t.Errorf("Database.Driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.Database.Host != "10.0.0.5" || cfg.Database.Port != 3307 {
		t.Errorf("Database = %s:%d, want 10.0.0.5:3307", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.Name != "relay_prod" || cfg.Database.User != "relay" || cfg.Database.Password != "secret" {
		t.Errorf("Database credentials = %+v", cfg.Database)
	}
	if cfg.Database.Timeout != 2*time.Second {
		t.Errorf("Database.Timeout = %v, want 2s", cfg.Database.Timeout)
	}
	if cfg.RateLimit.MaxAttempts != 20 || cfg.RateLimit.Decay != 30*time.Second {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if cfg.RateLimit.Store != StoreDatabase {
		t.Errorf("RateLimit.Store = %q, want database", cfg.RateLimit.Store)
	}
	if cfg.Broadcast.Buffer != 128 || cfg.Broadcast.Heartbeat != 5*time.Second {
		t.Errorf("Broadcast = %+v", cfg.Broadcast)
	}
	if !cfg.Bridges.Slack.Enabled() {
		t.Error("Bridges.Slack should be enabled")
	}
	if cfg.Bridges.Discord.Enabled() {
		t.Error("Bridges.Discord should be disabled")
	}
	if len(cfg.Bridges.Slack.Channels) != 2 {
		t.Errorf("Bridges.Slack.Channels = %v", cfg.Bridges.Slack.Channels)
	}
	if cfg.Bridges.RatePerSec != 2 {
		t.Errorf("Bridges.RatePerSec = %v, want 2", cfg.Bridges.RatePerSec)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Console {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Timezone != "UTC" {
		t.Errorf("Server.Timezone = %q, want UTC", cfg.Server.Timezone)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.Path != "relay.db" {
		t.Errorf("Database.Path = %q, want relay.db", cfg.Database.Path)
	}
	if cfg.Database.Timeout != 5*time.Second {
		t.Errorf("Database.Timeout = %v, want 5s", cfg.Database.Timeout)
	}
	if cfg.RateLimit.MaxAttempts != 10 {
		t.Errorf("RateLimit.MaxAttempts = %d, want 10", cfg.RateLimit.MaxAttempts)
	}
	if cfg.RateLimit.Decay != time.Minute {
		t.Errorf("RateLimit.Decay = %v, want 1m", cfg.RateLimit.Decay)
	}
	if cfg.RateLimit.Store != StoreMemory {
		t.Errorf("RateLimit.Store = %q, want memory", cfg.RateLimit.Store)
	}
	if cfg.Broadcast.Buffer != 64 {
		t.Errorf("Broadcast.Buffer = %d, want 64", cfg.Broadcast.Buffer)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  driver: mysql\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "127.0.0.1" || cfg.Database.Port != 3306 {
		t.Errorf("Database = %s:%d, want 127.0.0.1:3306", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.Name != "chatrelay" {
		t.Errorf("Database.Name = %q, want chatrelay", cfg.Database.Name)
	}
	if cfg.Database.Path != "" {
		t.Errorf("Database.Path = %q, want empty for mysql", cfg.Database.Path)
	}
}

func TestParse_BadgerDefaultPath(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  driver: badger\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Path != "relay-data" {
		t.Errorf("Database.Path = %q, want relay-data", cfg.Database.Path)
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("RELAY_SERVER_PORT", "7070")
	t.Setenv("RELAY_RATE_LIMIT_MAX_ATTEMPTS", "3")
	t.Setenv("RELAY_BRIDGES_DISCORD_BOT_TOKEN", "discord-token")
	t.Setenv("RELAY_BRIDGES_DISCORD_CHANNEL_ID", "123")

	cfg, err := Parse([]byte("server:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070 from env", cfg.Server.Port)
	}
	if cfg.RateLimit.MaxAttempts != 3 {
		t.Errorf("RateLimit.MaxAttempts = %d, want 3 from env", cfg.RateLimit.MaxAttempts)
	}
	if !cfg.Bridges.Discord.Enabled() || cfg.Bridges.Discord.BotToken != "discord-token" {
		t.Errorf("Bridges.Discord = %+v", cfg.Bridges.Discord)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown driver", "database:\n  driver: postgres\n", "database.driver"},
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"bad timezone", "server:\n  timezone: Mars/Olympus\n", "server.timezone"},
		{"negative attempts", "rate_limit:\n  max_attempts: -1\n", "rate_limit.max_attempts"},
		{"short decay", "rate_limit:\n  decay: 10ms\n", "rate_limit.decay"},
		{"unknown store", "rate_limit:\n  store: redis\n", "rate_limit.store"},
		{"database store on badger", "database:\n  driver: badger\nrate_limit:\n  store: database\n", "requires a sql database"},
		{"bad cron", "rate_limit:\n  prune_schedule: every now and then\n", "rate_limit.prune_schedule"},
		{"bridge without token", "bridges:\n  slack:\n    channel_id: C01\n", "bridges.slack.bot_token"},
		{"bridge without channel", "bridges:\n  discord:\n    bot_token: t\n", "bridges.discord.channel_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), "validation failed") {
				t.Errorf("error = %q, want to contain %q", err.Error(), "validation failed")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("server: [unclosed"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8181\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8181 {
		t.Errorf("Server.Port = %d, want 8181", cfg.Server.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/relay.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr() = %q, want %q", cfg.Addr(), ":8080")
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "UTC" {
		t.Errorf("Location = %q, want UTC", loc.String())
	}
}
