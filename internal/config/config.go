// ABOUTME: Configuration loading and parsing for aegis-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete aegis-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	HITL     HITLConfig     `yaml:"hitl"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// GatewayConfig holds the per-endpoint resilience defaults
type GatewayConfig struct {
	RateLimitRPS     float64 `yaml:"rate_limit_rps"`
	BurstSize        int     `yaml:"burst_size"`
	FailureThreshold int     `yaml:"failure_threshold"`

	RecoveryTimeout     time.Duration `yaml:"-"`
	HealthCheckInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	RecoveryTimeoutRaw     string `yaml:"recovery_timeout"`
	HealthCheckIntervalRaw string `yaml:"health_check_interval"`
}

// HITLConfig holds human-in-the-loop timing configuration
type HITLConfig struct {
	RequestTTL    time.Duration `yaml:"-"`
	ShortTimeout  time.Duration `yaml:"-"`
	LongTimeout   time.Duration `yaml:"-"`
	SweepInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	RequestTTLRaw    string `yaml:"request_ttl"`
	ShortTimeoutRaw  string `yaml:"short_timeout"`
	LongTimeoutRaw   string `yaml:"long_timeout"`
	SweepIntervalRaw string `yaml:"sweep_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the corresponding config fields are omitted.
const (
	DefaultRateLimitRPS        = 5.0
	DefaultBurstSize           = 10
	DefaultFailureThreshold    = 5
	DefaultRecoveryTimeout     = 60 * time.Second
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultRequestTTL          = 10 * time.Minute
	DefaultShortTimeout        = 30 * time.Second
	DefaultLongTimeout         = 90 * time.Second
	DefaultSweepInterval       = time.Minute
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
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

// applyDefaults fills in zero-valued tuning knobs.
func (c *Config) applyDefaults() {
	if c.Gateway.RateLimitRPS == 0 {
		c.Gateway.RateLimitRPS = DefaultRateLimitRPS
	}
	if c.Gateway.BurstSize == 0 {
		c.Gateway.BurstSize = DefaultBurstSize
	}
	if c.Gateway.FailureThreshold == 0 {
		c.Gateway.FailureThreshold = DefaultFailureThreshold
	}
	if c.Gateway.RecoveryTimeout == 0 {
		c.Gateway.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if c.Gateway.HealthCheckInterval == 0 {
		c.Gateway.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if c.HITL.RequestTTL == 0 {
		c.HITL.RequestTTL = DefaultRequestTTL
	}
	if c.HITL.ShortTimeout == 0 {
		c.HITL.ShortTimeout = DefaultShortTimeout
	}
	if c.HITL.LongTimeout == 0 {
		c.HITL.LongTimeout = DefaultLongTimeout
	}
	if c.HITL.SweepInterval == 0 {
		c.HITL.SweepInterval = DefaultSweepInterval
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Gateway.RateLimitRPS < 0 {
		return fmt.Errorf("gateway.rate_limit_rps must not be negative")
	}
	if c.Gateway.BurstSize < 0 {
		return fmt.Errorf("gateway.burst_size must not be negative")
	}
	if c.Gateway.FailureThreshold < 1 {
		return fmt.Errorf("gateway.failure_threshold must be at least 1")
	}

	if c.HITL.ShortTimeout > c.HITL.LongTimeout {
		return fmt.Errorf("hitl.short_timeout must not exceed hitl.long_timeout")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"gateway.recovery_timeout", cfg.Gateway.RecoveryTimeoutRaw, &cfg.Gateway.RecoveryTimeout},
		{"gateway.health_check_interval", cfg.Gateway.HealthCheckIntervalRaw, &cfg.Gateway.HealthCheckInterval},
		{"hitl.request_ttl", cfg.HITL.RequestTTLRaw, &cfg.HITL.RequestTTL},
		{"hitl.short_timeout", cfg.HITL.ShortTimeoutRaw, &cfg.HITL.ShortTimeout},
		{"hitl.long_timeout", cfg.HITL.LongTimeoutRaw, &cfg.HITL.LongTimeout},
		{"hitl.sweep_interval", cfg.HITL.SweepIntervalRaw, &cfg.HITL.SweepInterval},
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
