// ABOUTME: Configuration loading and parsing for the chat client
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Deployment modes. Development points at a backend on localhost.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Default endpoints, per deployment mode.
const (
	DefaultAPIURL            = "https://chat-backend-h7p4.onrender.com/api"
	DefaultDevelopmentAPIURL = "http://localhost:5000/api"
)

// Storage drivers understood by store.Open.
const (
	StorageSQLite = "sqlite"
	StoragePebble = "pebble"
	StorageMemory = "memory"
)

// Config represents the complete chat client configuration
type Config struct {
	Mode    string        `yaml:"mode" toml:"mode"`
	Server  ServerConfig  `yaml:"server" toml:"server"`
	HTTP    HTTPConfig    `yaml:"http" toml:"http"`
	Push    PushConfig    `yaml:"push" toml:"push"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Dedupe  DedupeConfig  `yaml:"dedupe" toml:"dedupe"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the backend endpoints
type ServerConfig struct {
	APIURL  string `yaml:"api_url" toml:"api_url"`
	PushURL string `yaml:"push_url" toml:"push_url"` // derived from APIURL when empty
}

// HTTPConfig holds REST client settings
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// PushConfig holds push channel timing
type PushConfig struct {
	HandshakeTimeout time.Duration `yaml:"-" toml:"-"`
	PingInterval     time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	HandshakeTimeoutRaw string `yaml:"handshake_timeout" toml:"handshake_timeout"`
	PingIntervalRaw     string `yaml:"ping_interval" toml:"ping_interval"`
}

// StorageConfig selects where the session is persisted between runs
type StorageConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
}

// DedupeConfig bounds the seen-message cache
type DedupeConfig struct {
	TTL     time.Duration `yaml:"-" toml:"-"`
	TTLRaw  string        `yaml:"ttl" toml:"ttl"`
	MaxSize int           `yaml:"max_size" toml:"max_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills every unset field. Must run after parseDurations.
func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeProduction
	}
	if c.Server.APIURL == "" {
		if c.Mode == ModeDevelopment {
			c.Server.APIURL = DefaultDevelopmentAPIURL
		} else {
			c.Server.APIURL = DefaultAPIURL
		}
	}
	c.Server.APIURL = strings.TrimRight(c.Server.APIURL, "/")
	if c.Server.PushURL == "" {
		if derived, err := DerivePushURL(c.Server.APIURL); err == nil {
			c.Server.PushURL = derived
		}
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 15 * time.Second
	}
	if c.Push.HandshakeTimeout == 0 {
		c.Push.HandshakeTimeout = 10 * time.Second
	}
	if c.Push.PingInterval == 0 {
		c.Push.PingInterval = 25 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageSQLite
	}
	if c.Storage.Path == "" && c.Storage.Driver != StorageMemory {
		c.Storage.Path = defaultStoragePath(c.Storage.Driver)
	}
	if c.Dedupe.TTL == 0 {
		c.Dedupe.TTL = 10 * time.Minute
	}
	if c.Dedupe.MaxSize == 0 {
		c.Dedupe.MaxSize = 10_000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Mode != ModeDevelopment && c.Mode != ModeProduction {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeDevelopment, ModeProduction, c.Mode)
	}

	if _, err := url.ParseRequestURI(c.Server.APIURL); err != nil {
		return fmt.Errorf("server.api_url is invalid: %w", err)
	}

	if c.Server.PushURL == "" {
		return fmt.Errorf("server.push_url is required when it cannot be derived from server.api_url")
	}
	u, err := url.Parse(c.Server.PushURL)
	if err != nil {
		return fmt.Errorf("server.push_url is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server.push_url must use ws or wss, got %q", u.Scheme)
	}

	switch c.Storage.Driver {
	case StorageSQLite, StoragePebble:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("storage.driver must be one of sqlite, pebble, memory; got %q", c.Storage.Driver)
	}

	if c.Dedupe.MaxSize < 0 {
		return fmt.Errorf("dedupe.max_size must not be negative")
	}

	return nil
}

// DerivePushURL maps the REST base URL onto the websocket endpoint served by
// the same backend: http→ws, https→wss, path /ws at the origin.
func DerivePushURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("parsing api url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"http.timeout", cfg.HTTP.TimeoutRaw, &cfg.HTTP.Timeout},
		{"push.handshake_timeout", cfg.Push.HandshakeTimeoutRaw, &cfg.Push.HandshakeTimeout},
		{"push.ping_interval", cfg.Push.PingIntervalRaw, &cfg.Push.PingInterval},
		{"dedupe.ttl", cfg.Dedupe.TTLRaw, &cfg.Dedupe.TTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}

// Path returns the path to the client config file.
// Priority: CHAT_CONFIG env var > XDG_CONFIG_HOME/chat/client.yaml > ~/.config/chat/client.yaml
func Path() string {
	if envPath := os.Getenv("CHAT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "client.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "chat", "client.yaml")
}

// defaultStoragePath returns where the persisted session lives.
// Priority: XDG_DATA_HOME/chat > ~/.local/share/chat
func defaultStoragePath(driver string) string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			dataDir = "data"
		} else {
			dataDir = filepath.Join(homeDir, ".local", "share")
		}
	}

	if driver == StoragePebble {
		return filepath.Join(dataDir, "chat", "session.pebble")
	}
	return filepath.Join(dataDir, "chat", "session.db")
}
