// Package config loads the bot configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Token    string `envconfig:"DISCORD_TOKEN" required:"true"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	BatchSize           int           `envconfig:"BATCH_SIZE" default:"99"`
	ClearLimit          int           `envconfig:"CLEAR_LIMIT" default:"50"`
	RequireConfirmation bool          `envconfig:"REQUIRE_CONFIRMATION" default:"true"`
	StrictHandles       bool          `envconfig:"STRICT_HANDLES" default:"false"`
	RangeOnly           bool          `envconfig:"RANGE_ONLY" default:"false"`
	MaxMessageAge       time.Duration `envconfig:"MAX_MESSAGE_AGE" default:"336h"`

	// AuditDB is the SQLite audit database. Empty keeps the audit in the log.
	AuditDB        string        `envconfig:"AUDIT_DB" default:"purge.db"`
	AuditRetention time.Duration `envconfig:"AUDIT_RETENTION" default:"720h"`

	MetricsAddr string `envconfig:"METRICS_ADDR"`
	// Comma-separated guild IDs to sync commands to. Empty syncs globally.
	SyncGuildIDs string `envconfig:"SYNC_GUILD_IDS"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.BatchSize < 1 || c.BatchSize > 100 {
		return fmt.Errorf("BATCH_SIZE must be between 1 and 100, got %d", c.BatchSize)
	}
	if c.ClearLimit < 1 {
		return fmt.Errorf("CLEAR_LIMIT must be positive, got %d", c.ClearLimit)
	}
	if c.MaxMessageAge < 0 {
		return fmt.Errorf("MAX_MESSAGE_AGE must not be negative")
	}
	if c.AuditRetention < 0 {
		return fmt.Errorf("AUDIT_RETENTION must not be negative")
	}
	if _, err := c.GuildIDs(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// GuildIDs parses SYNC_GUILD_IDS.
func (c *Config) GuildIDs() ([]snowflake.ID, error) {
	if c.SyncGuildIDs == "" {
		return nil, nil
	}
	parts := strings.Split(c.SyncGuildIDs, ",")
	ids := make([]snowflake.ID, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := snowflake.Parse(part)
		if err != nil {
			return nil, fmt.Errorf("invalid guild ID %q in SYNC_GUILD_IDS: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Level parses LOG_LEVEL.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}
