// Package config defines the top-level configuration for the polysift
// pipeline and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is everything the binary reads at startup. Values stack in Load:
// defaults first, then the TOML file, then POLYSIFT_* environment overrides.
type Config struct {
	Pipeline PipelineConfig `toml:"pipeline"`
	Archive  ArchiveConfig  `toml:"archive"`
	S3       S3Config       `toml:"s3"`
	Redis    RedisConfig    `toml:"redis"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PipelineConfig holds the snapshot directory and transformation parameters.
type PipelineConfig struct {
	// DataDir is the directory holding snapshot files.
	DataDir string `toml:"data_dir"`

	// Interval is the watch-mode pass interval.
	Interval duration `toml:"interval"`

	// Parallelism caps the number of snapshot runs processed concurrently.
	Parallelism int `toml:"parallelism"`

	// ExcludeTerms overrides the built-in sports term list when non-empty.
	ExcludeTerms []string `toml:"exclude_terms"`

	// RequireValidTokens drops entries whose nested markets are missing
	// token IDs.
	RequireValidTokens bool `toml:"require_valid_tokens"`
}

// ArchiveConfig holds snapshot retention parameters.
type ArchiveConfig struct {
	Enabled bool `toml:"enabled"`

	// Retention is the age beyond which snapshots are moved to object storage.
	Retention duration `toml:"retention"`

	// Interval runs the sweep on a fixed period when set and Cron is empty.
	Interval duration `toml:"interval"`

	// Cron is a 5-field cron expression; takes precedence over Interval.
	Cron string `toml:"cron"`

	// Prefix is the object key prefix for uploaded snapshots.
	Prefix string `toml:"prefix"`
}

// S3Config points at the bucket that receives archived snapshots. MinIO and
// R2 work through Endpoint plus ForcePathStyle.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// RedisConfig holds Redis connection parameters plus the channel, stream, and
// lock names used by the feed layer.
type RedisConfig struct {
	Enabled           bool     `toml:"enabled"`
	Addr              string   `toml:"addr"`
	Password          string   `toml:"password"`
	DB                int      `toml:"db"`
	PoolSize          int      `toml:"pool_size"`
	MaxRetries        int      `toml:"max_retries"`
	TLSEnabled        bool     `toml:"tls_enabled"`
	EventChannel      string   `toml:"event_channel"`
	CategorizedStream string   `toml:"categorized_stream"`
	LockKey           string   `toml:"lock_key"`
	LockTTL           duration `toml:"lock_ttl"`
}

// NotifyConfig holds webhook notification parameters.
type NotifyConfig struct {
	Enabled    bool     `toml:"enabled"`
	WebhookURL string   `toml:"webhook_url"`
	Events     []string `toml:"events"`
	Timeout    duration `toml:"timeout"`
}

// duration lets TOML carry time.Duration fields as strings like "90s" or
// "24h".
type duration struct {
	time.Duration
}

// UnmarshalText parses the TOML string form.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText renders the duration back to its string form.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults is the base layer of the configuration; anything here can be
// replaced by the TOML file or the environment. polysift.example.toml mirrors
// these values.
func Defaults() Config {
	return Config{
		Pipeline: PipelineConfig{
			DataDir:            "data",
			Interval:           duration{5 * time.Minute},
			Parallelism:        4,
			ExcludeTerms:       []string{},
			RequireValidTokens: true,
		},
		Archive: ArchiveConfig{
			Enabled:   false,
			Retention: duration{90 * 24 * time.Hour},
			Prefix:    "snapshots",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polysift-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Redis: RedisConfig{
			Enabled:           false,
			Addr:              "localhost:6379",
			DB:                0,
			PoolSize:          20,
			MaxRetries:        3,
			TLSEnabled:        false,
			EventChannel:      "polysift:runs",
			CategorizedStream: "polysift:categorized",
			LockKey:           "polysift:watch",
			LockTTL:           duration{5 * time.Minute},
		},
		Notify: NotifyConfig{
			Enabled: false,
			Events:  []string{"run_completed", "run_failed"},
			Timeout: duration{10 * time.Second},
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

// validModes lists the operating modes the binary knows how to run.
var validModes = map[string]bool{
	"run":        true,
	"watch":      true,
	"filter":     true,
	"categorize": true,
	"archive":    true,
}

// validLogLevels lists the accepted log_level spellings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate collects every problem it can find rather than stopping at the
// first, so an operator fixes a broken config file in one pass.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, watch, filter, categorize, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Pipeline
	if strings.TrimSpace(c.Pipeline.DataDir) == "" {
		errs = append(errs, "pipeline: data_dir must not be empty")
	}
	if c.Pipeline.Parallelism < 1 {
		errs = append(errs, "pipeline: parallelism must be >= 1")
	}
	if c.Mode == "watch" && c.Pipeline.Interval.Duration <= 0 {
		errs = append(errs, "pipeline: interval must be > 0 for watch mode")
	}

	// Archive. S3 parameters only matter when the sweep can actually run.
	if c.Archive.Enabled || c.Mode == "archive" {
		if c.Archive.Retention.Duration <= 0 {
			errs = append(errs, "archive: retention must be > 0")
		}
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Redis feed
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			errs = append(errs, "redis: lock_ttl must be > 0")
		}
	}

	// Notify
	if c.Notify.Enabled {
		if c.Notify.WebhookURL == "" {
			errs = append(errs, "notify: webhook_url must not be empty")
		}
		if c.Notify.Timeout.Duration <= 0 {
			errs = append(errs, "notify: timeout must be > 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
