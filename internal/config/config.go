// Package config loads hashscan settings from defaults, an optional YAML
// file and HS_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/hashscan/internal/encryption"
	"github.com/sydlexius/hashscan/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Lookup  LookupConfig   `yaml:"lookup"`
	Reports ReportsConfig  `yaml:"reports"`
	Notify  NotifyConfig   `yaml:"notify"`
	Watch   WatchConfig    `yaml:"watch"`
	Logging logging.Config `yaml:"logging"`
}

// LookupConfig holds reputation API settings.
type LookupConfig struct {
	APIKey            string        `yaml:"api_key" validate:"required"`
	BaseURL           string        `yaml:"base_url" validate:"required,url"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"gte=0"`
	ProxyURL          string        `yaml:"proxy_url" validate:"omitempty,url"`
}

// ReportsConfig holds report output directories.
type ReportsConfig struct {
	JSONDir string `yaml:"json_dir" validate:"required"`
	CSVDir  string `yaml:"csv_dir" validate:"required"`
}

// NotifyConfig holds notification settings. Enabled turns on email, which
// then needs a recipient and relay; a webhook URL turns on the webhook
// independently.
type NotifyConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Recipient string `yaml:"recipient" validate:"required_if=Enabled true"`
	From      string `yaml:"from" validate:"required_if=Enabled true"`
	Subject   string `yaml:"subject"`
	SMTPHost  string `yaml:"smtp_host" validate:"required_if=Enabled true"`
	SMTPPort  int    `yaml:"smtp_port" validate:"gte=1,lte=65535"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`

	WebhookURL  string `yaml:"webhook_url" validate:"omitempty,url"`
	WebhookType string `yaml:"webhook_type" validate:"oneof=generic discord slack gotify"`
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	Debounce      time.Duration `yaml:"debounce" validate:"gt=0"`
	RetryInterval time.Duration `yaml:"retry_interval" validate:"gte=0"`
}

// Default returns a Config with every optional setting filled in.
func Default() *Config {
	return &Config{
		Lookup: LookupConfig{
			BaseURL:           "https://www.virustotal.com/api/v3",
			Timeout:           60 * time.Second,
			RequestsPerMinute: 4,
		},
		Reports: ReportsConfig{
			JSONDir: "Results/Log_Json",
			CSVDir:  "Results/Csv",
		},
		Notify: NotifyConfig{
			Subject:     "Scan Report",
			SMTPPort:    587,
			WebhookType: "generic",
		},
		Watch: WatchConfig{
			Debounce:      2 * time.Second,
			RetryInterval: 5 * time.Minute,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads config from a YAML file (if it exists), applies environment
// overrides, opens sealed secrets and validates the result. Every failure
// is a *Error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, &Error{Key: path, Msg: "loading config file", Cause: err}
		}
	}
	if err := cfg.loadFromEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.openSecrets(os.Getenv("HS_SECRET_PASSPHRASE")); err != nil {
		return nil, err
	}

	cfg.Lookup.APIKey = strings.TrimSpace(cfg.Lookup.APIKey)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

// secrets lists the fields that may hold sealed values, keyed by name.
func (c *Config) secrets() map[string]*string {
	return map[string]*string{
		"lookup.api_key":     &c.Lookup.APIKey,
		"notify.password":    &c.Notify.Password,
		"notify.webhook_url": &c.Notify.WebhookURL,
	}
}

func (c *Config) openSecrets(passphrase string) error {
	var sealer *encryption.Sealer
	for key, field := range c.secrets() {
		if !encryption.IsSealed(*field) {
			continue
		}
		if sealer == nil {
			s, err := encryption.NewSealer(passphrase)
			if err != nil {
				return &Error{Key: key, Msg: "sealed value requires HS_SECRET_PASSPHRASE", Cause: err}
			}
			sealer = s
		}
		plain, err := sealer.Open(*field)
		if err != nil {
			return &Error{Key: key, Msg: "opening sealed value", Cause: err}
		}
		*field = plain
	}
	return nil
}

// Error is a configuration problem tied to a key.
type Error struct {
	Key   string
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config: %s: %s: %v", e.Key, e.Msg, e.Cause)
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }
