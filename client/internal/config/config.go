package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultBaseURL        = "http://localhost:8080"
	DefaultMaxAttempts    = 5
	DefaultBackoffInitial = 1 * time.Second
	DefaultBackoffMax     = 30 * time.Second
)

// Config holds the client-side configuration parsed from the `client:`
// section of config.yaml. The `server:` key in the same file is ignored.
type Config struct {
	Client ClientConfig `yaml:"client"`
}

// ClientConfig holds all subscriber-side settings.
type ClientConfig struct {
	// BaseURL is the coursepulse server's HTTP(S) endpoint; it is upgraded
	// to ws(s) when the channel client dials.
	BaseURL string `yaml:"base_url"`

	// Path is the subscription path, e.g. "/notifications/42" or
	// "/collaboration/room9".
	Path string `yaml:"path"`

	// Enabled gates whether any realtime connection is attempted (default false).
	Enabled bool `yaml:"enabled"`

	// DisableReconnect turns off automatic reconnection after connection loss.
	DisableReconnect bool `yaml:"disable_reconnect"`

	// MaxAttempts is the dial attempt budget per outage.
	MaxAttempts int `yaml:"max_attempts"`

	// BackoffInitial and BackoffMax bound the delay between dial attempts.
	BackoffInitial time.Duration `yaml:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max"`

	// Auth configures how the client authenticates to the server.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig specifies the authentication mode used on the upgrade request.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header name to send the key in. Defaults to "x-api-key".
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key value resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// Load reads and parses the config file at path, returning the client
// configuration. Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("client config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("client config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("client config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Client: ClientConfig{
			BaseURL:        DefaultBaseURL,
			MaxAttempts:    DefaultMaxAttempts,
			BackoffInitial: DefaultBackoffInitial,
			BackoffMax:     DefaultBackoffMax,
		},
	}
}

func validate(cfg *Config) error {
	c := cfg.Client
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("client.base_url %q must be an http(s) URL", c.BaseURL)
	}
	if c.Enabled && c.Path == "" {
		return fmt.Errorf("client.path must not be empty when the client is enabled")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("client.max_attempts must be positive")
	}
	if c.BackoffInitial <= 0 || c.BackoffMax < c.BackoffInitial {
		return fmt.Errorf("client backoff bounds invalid: initial=%v max=%v", c.BackoffInitial, c.BackoffMax)
	}
	switch c.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("client.auth.mode %q unknown: want apikey|none", c.Auth.Mode)
	}
	return nil
}
