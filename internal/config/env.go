package config

import (
	"strconv"
	"time"
)

// loadFromEnv applies HS_* overrides. Malformed numbers and durations are
// rejected rather than ignored.
func (c *Config) loadFromEnv(getenv func(string) string) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"HS_API_KEY", &c.Lookup.APIKey},
		{"HS_BASE_URL", &c.Lookup.BaseURL},
		{"HS_PROXY_URL", &c.Lookup.ProxyURL},
		{"HS_JSON_DIR", &c.Reports.JSONDir},
		{"HS_CSV_DIR", &c.Reports.CSVDir},
		{"HS_NOTIFY_RECIPIENT", &c.Notify.Recipient},
		{"HS_NOTIFY_FROM", &c.Notify.From},
		{"HS_SMTP_HOST", &c.Notify.SMTPHost},
		{"HS_SMTP_USERNAME", &c.Notify.Username},
		{"HS_SMTP_PASSWORD", &c.Notify.Password},
		{"HS_WEBHOOK_URL", &c.Notify.WebhookURL},
		{"HS_WEBHOOK_TYPE", &c.Notify.WebhookType},
		{"HS_LOG_LEVEL", &c.Logging.Level},
		{"HS_LOG_FORMAT", &c.Logging.Format},
		{"HS_LOG_FILE", &c.Logging.FilePath},
	}
	for _, s := range strs {
		if v := getenv(s.name); v != "" {
			*s.dst = v
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"HS_REQUESTS_PER_MINUTE", &c.Lookup.RequestsPerMinute},
		{"HS_SMTP_PORT", &c.Notify.SMTPPort},
	}
	for _, s := range ints {
		v := getenv(s.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return &Error{Key: s.name, Msg: "not an integer", Cause: err}
		}
		*s.dst = n
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"HS_LOOKUP_TIMEOUT", &c.Lookup.Timeout},
		{"HS_WATCH_DEBOUNCE", &c.Watch.Debounce},
		{"HS_WATCH_RETRY_INTERVAL", &c.Watch.RetryInterval},
	}
	for _, s := range durations {
		v := getenv(s.name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return &Error{Key: s.name, Msg: "not a duration", Cause: err}
		}
		*s.dst = d
	}

	if v := getenv("HS_NOTIFY_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &Error{Key: "HS_NOTIFY_ENABLED", Msg: "not a boolean", Cause: err}
		}
		c.Notify.Enabled = b
	}
	return nil
}
