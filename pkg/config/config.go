package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation
const (
	DefaultBaseURL      = "https://api.shipgrid.in/api"
	DefaultHTTPTimeout  = 5 * time.Minute
	DefaultPollInterval = 2 * time.Second
	DefaultLinkTimeout  = 5 * time.Minute
	DefaultMaxRetries   = 3
)

// EnvToken and EnvBaseURL override their config-file counterparts when set.
const (
	EnvToken   = "SHIPGRID_API_TOKEN"
	EnvBaseURL = "SHIPGRID_BASE_URL"
)

// Config represents the complete shipgrid configuration
type Config struct {
	API     APIConfig     `yaml:"api"`
	Link    LinkConfig    `yaml:"link"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig configures the HTTP client.
type APIConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Token       string        `yaml:"token"`
	TokenEnv    string        `yaml:"token_env"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	NetworkLogs bool          `yaml:"network_logs"`
}

// LinkConfig configures the account-link poll loop.
type LinkConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Debug bool   `yaml:"debug"`
}

// DefaultConfig returns the configuration with all defaults applied.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    DefaultBaseURL,
			TokenEnv:   EnvToken,
			Timeout:    DefaultHTTPTimeout,
			MaxRetries: DefaultMaxRetries,
		},
		Link: LinkConfig{
			PollInterval: DefaultPollInterval,
			Timeout:      DefaultLinkTimeout,
		},
		Logging: LoggingConfig{
			Dir: defaultLogDir(),
		},
	}
}

// Load reads configuration from the given path (or the default location when
// path is empty), merges it over defaults, then applies env overrides.
// A missing config file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		if err := loadAndMerge(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultConfigPath returns ~/.shipgrid/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".shipgrid", "config.yaml")
}

func defaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shipgrid-logs"
	}
	return filepath.Join(home, ".shipgrid", "logs")
}

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	mergeConfigs(cfg, &override)
	return nil
}

// mergeConfigs merges override into base, field by field. Zero values in the
// override leave the base untouched so partial config files work.
func mergeConfigs(base, override *Config) {
	if override == nil {
		return
	}

	if override.API.BaseURL != "" {
		base.API.BaseURL = override.API.BaseURL
	}
	if override.API.Token != "" {
		base.API.Token = override.API.Token
	}
	if override.API.TokenEnv != "" {
		base.API.TokenEnv = override.API.TokenEnv
	}
	if override.API.Timeout != 0 {
		base.API.Timeout = override.API.Timeout
	}
	if override.API.MaxRetries != 0 {
		base.API.MaxRetries = override.API.MaxRetries
	}
	if override.API.NetworkLogs {
		base.API.NetworkLogs = true
	}

	if override.Link.PollInterval != 0 {
		base.Link.PollInterval = override.Link.PollInterval
	}
	if override.Link.Timeout != 0 {
		base.Link.Timeout = override.Link.Timeout
	}

	if override.Logging.Dir != "" {
		base.Logging.Dir = override.Logging.Dir
	}
	if override.Logging.Debug {
		base.Logging.Debug = true
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		cfg.API.Token = v
	}
}

// ResolveToken resolves the bearer token: explicit value first, then the
// configured env var. Token acquisition itself belongs to the auth layer
// that issued it; we only carry it.
func (c *Config) ResolveToken() string {
	if c.API.Token != "" {
		return c.API.Token
	}
	if c.API.TokenEnv != "" {
		return os.Getenv(c.API.TokenEnv)
	}
	return ""
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries must not be negative")
	}
	if c.Link.PollInterval <= 0 {
		return fmt.Errorf("link.poll_interval must be positive")
	}
	if c.Link.Timeout <= 0 {
		return fmt.Errorf("link.timeout must be positive")
	}
	return nil
}
