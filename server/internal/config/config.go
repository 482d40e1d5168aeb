package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort     = 8080
	DefaultHistoryLimit = 100
	DefaultHistoryTTL   = 5 * time.Minute
	DefaultBridgePrefix = "coursepulse:ws:"
	DefaultBridgeAddr   = "localhost:6379"
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `client:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates incoming HTTP and
	// WebSocket upgrade requests.
	Auth AuthConfig `yaml:"auth"`

	// History controls per-stream message retention.
	History HistoryConfig `yaml:"history"`

	// Bridge configures cross-instance fan-out over Redis pub/sub.
	Bridge BridgeConfig `yaml:"bridge"`

	// Notify holds offline-delivery rules and webhook targets.
	Notify NotifyConfig `yaml:"notify"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected
	// API key. Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
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

// HistoryConfig controls per-stream message retention.
type HistoryConfig struct {
	// Limit is the number of envelopes retained per stream; the oldest entry
	// is evicted first once the limit is reached. Default: 100.
	Limit int `yaml:"limit"`

	// TTL is how long an idle stream's history is kept after its last
	// message. When TTL elapses without traffic the stream is evicted.
	// Default: 5m.
	TTL time.Duration `yaml:"ttl"`
}

// BridgeConfig configures the Redis pub/sub bridge between server instances.
type BridgeConfig struct {
	// Enabled turns the bridge on. A single-instance deployment leaves it off.
	Enabled bool `yaml:"enabled"`

	// Addr is the Redis address (default "localhost:6379").
	Addr string `yaml:"addr"`

	// PasswordEnv is the name of the environment variable that holds the
	// Redis password; empty means no auth.
	PasswordEnv string `yaml:"password_env"`

	// DB is the Redis database number.
	DB int `yaml:"db"`

	// Prefix namespaces the pub/sub channel (default "coursepulse:ws:").
	Prefix string `yaml:"prefix"`
}

// Password returns the Redis password resolved from the environment.
func (b BridgeConfig) Password() string {
	if b.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(b.PasswordEnv)
}

// NotifyConfig holds offline-delivery rules and webhook targets.
type NotifyConfig struct {
	Rules    []NotifyRule    `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// NotifyRule defines one offline-delivery condition: an event published to a
// matching stream with no connected subscriber triggers webhook delivery.
type NotifyRule struct {
	// Name is the human-readable rule identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// StreamPrefix selects the streams the rule applies to, e.g. "dashboard:".
	StreamPrefix string `yaml:"stream_prefix"`

	// Event is the envelope type the rule fires on, e.g. "dashboard_update".
	// Empty matches every event.
	Event string `yaml:"event"`

	// Cooldown suppresses re-fires per stream for this duration.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the config file at path, returning the server
// configuration. Missing fields are filled with sensible defaults before
// validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			History: HistoryConfig{
				Limit: DefaultHistoryLimit,
				TTL:   DefaultHistoryTTL,
			},
			Bridge: BridgeConfig{
				Addr:   DefaultBridgeAddr,
				Prefix: DefaultBridgePrefix,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.History.Limit <= 0 {
		return fmt.Errorf("server.history.limit must be positive")
	}
	if s.History.TTL < 0 {
		return fmt.Errorf("server.history.ttl must not be negative")
	}
	if s.Bridge.Enabled && s.Bridge.Addr == "" {
		return fmt.Errorf("server.bridge.addr must be set when the bridge is enabled")
	}
	for _, r := range s.Notify.Rules {
		if r.Name == "" {
			return fmt.Errorf("server.notify.rules: rule with empty name")
		}
		if r.StreamPrefix == "" {
			return fmt.Errorf("server.notify.rules %q: stream_prefix must not be empty", r.Name)
		}
	}
	for _, w := range s.Notify.Webhooks {
		switch w.Type {
		case "slack", "http":
		default:
			return fmt.Errorf("server.notify.webhooks: type %q unknown: want slack|http", w.Type)
		}
	}
	return nil
}
