package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds the effective configuration: defaults, then the TOML file at
// path, then POLYSIFT_* environment overrides, in that order. Validation is
// the caller's job; Load returns whatever the layers produced.
func Load(path string) (*Config, error) {
	// Pull in a local .env first. godotenv never overrides variables that are
	// already set, so real environment always wins over the file.
	_ = godotenv.Load()

	cfg := Defaults()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields from well-known POLYSIFT_*
// variables so operators can inject settings at deploy time without editing
// the TOML file. Secret fields also accept a *_FILE variant naming a file
// whose trimmed contents become the value; the *_FILE variant wins when both
// are set.
func applyEnvOverrides(cfg *Config) {
	// ── Pipeline ──
	setStr(&cfg.Pipeline.DataDir, "POLYSIFT_PIPELINE_DATA_DIR")
	setDuration(&cfg.Pipeline.Interval, "POLYSIFT_PIPELINE_INTERVAL")
	setInt(&cfg.Pipeline.Parallelism, "POLYSIFT_PIPELINE_PARALLELISM")
	setStringSlice(&cfg.Pipeline.ExcludeTerms, "POLYSIFT_PIPELINE_EXCLUDE_TERMS")
	setBool(&cfg.Pipeline.RequireValidTokens, "POLYSIFT_PIPELINE_REQUIRE_VALID_TOKENS")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "POLYSIFT_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Retention, "POLYSIFT_ARCHIVE_RETENTION")
	setDuration(&cfg.Archive.Interval, "POLYSIFT_ARCHIVE_INTERVAL")
	setStr(&cfg.Archive.Cron, "POLYSIFT_ARCHIVE_CRON")
	setStr(&cfg.Archive.Prefix, "POLYSIFT_ARCHIVE_PREFIX")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "POLYSIFT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYSIFT_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYSIFT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYSIFT_S3_ACCESS_KEY")
	setStrFile(&cfg.S3.AccessKey, "POLYSIFT_S3_ACCESS_KEY_FILE")
	setStr(&cfg.S3.SecretKey, "POLYSIFT_S3_SECRET_KEY")
	setStrFile(&cfg.S3.SecretKey, "POLYSIFT_S3_SECRET_KEY_FILE")
	setBool(&cfg.S3.UseSSL, "POLYSIFT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYSIFT_S3_FORCE_PATH_STYLE")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYSIFT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYSIFT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYSIFT_REDIS_PASSWORD")
	setStrFile(&cfg.Redis.Password, "POLYSIFT_REDIS_PASSWORD_FILE")
	setInt(&cfg.Redis.DB, "POLYSIFT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYSIFT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYSIFT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYSIFT_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.EventChannel, "POLYSIFT_REDIS_EVENT_CHANNEL")
	setStr(&cfg.Redis.CategorizedStream, "POLYSIFT_REDIS_CATEGORIZED_STREAM")
	setStr(&cfg.Redis.LockKey, "POLYSIFT_REDIS_LOCK_KEY")
	setDuration(&cfg.Redis.LockTTL, "POLYSIFT_REDIS_LOCK_TTL")

	// ── Notify ──
	setBool(&cfg.Notify.Enabled, "POLYSIFT_NOTIFY_ENABLED")
	setStr(&cfg.Notify.WebhookURL, "POLYSIFT_NOTIFY_WEBHOOK_URL")
	setStrFile(&cfg.Notify.WebhookURL, "POLYSIFT_NOTIFY_WEBHOOK_URL_FILE")
	setStringSlice(&cfg.Notify.Events, "POLYSIFT_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.Timeout, "POLYSIFT_NOTIFY_TIMEOUT")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYSIFT_MODE")
	setStr(&cfg.LogLevel, "POLYSIFT_LOG_LEVEL")
}

// lookup reads the variable and reports whether it should override. An empty
// value counts as unset.
func lookup(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func setStr(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

// setStrFile reads the file named by the variable and stores its trimmed
// contents. Unreadable files are ignored so a stale *_FILE variable does not
// clobber a value supplied another way.
func setStrFile(dst *string, key string) {
	name, ok := lookup(key)
	if !ok {
		return
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return
	}
	if s := strings.TrimSpace(string(b)); s != "" {
		*dst = s
	}
}

func setInt(dst *int, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func setBool(dst *bool, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}

func setDuration(dst *duration, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		dst.Duration = d
	}
}

// setStringSlice splits the variable on commas, dropping empty entries. The
// override only applies when at least one entry survives.
func setStringSlice(dst *[]string, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
