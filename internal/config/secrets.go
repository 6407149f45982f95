package config

// RedactedConfig returns a copy of cfg that is safe to log: credentials are
// masked and slices are duplicated so the copy cannot alias the live
// config.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	// Webhook URLs routinely embed tokens.
	redact(&out.Notify.WebhookURL)

	if cfg.Pipeline.ExcludeTerms != nil {
		out.Pipeline.ExcludeTerms = append([]string(nil), cfg.Pipeline.ExcludeTerms...)
	}
	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}

	return out
}

const redacted = "***"

// redact masks s unless it is already empty.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
