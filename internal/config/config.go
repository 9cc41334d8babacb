package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort            = 8000
	defaultReadTimeout     = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownGrace   = 10 * time.Second
	defaultMaxBodyBytes    = 10 << 20 // 10 MiB
	defaultUpstreamTimeout = 60 * time.Second
	defaultDialTimeout     = 10 * time.Second
	defaultHeaderTimeout   = 60 * time.Second
	defaultMaxIdleConns    = 50
	defaultStreamBuffer    = 8
	defaultReadSize        = 32 << 10

	LogModeDevelopment = "development"
	LogModeProduction  = "production"
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Upstream  UpstreamConfig    `yaml:"upstream"`
	Platforms map[string]string `yaml:"platforms"`
	Log       LogConfig         `yaml:"log"`
	Metrics   MetricsConfig     `yaml:"metrics"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	// WriteTimeout of zero leaves relayed streams without a write deadline.
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes"`
}

// UpstreamConfig tunes the shared outbound HTTP client.
type UpstreamConfig struct {
	Timeout               time.Duration `yaml:"timeout"`
	DialTimeout           time.Duration `yaml:"dial_timeout"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"`
	MaxIdleConns          int           `yaml:"max_idle_conns"`
	StreamBuffer          int           `yaml:"stream_buffer"`
	ReadSize              int           `yaml:"read_size"`
}

type LogConfig struct {
	Mode string `yaml:"mode"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	cfg := Config{Metrics: MetricsConfig{Enabled: true}}
	cfg.applyDefaults()
	return cfg
}

// Load reads YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	cfg := Config{Metrics: MetricsConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = defaultReadTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = defaultIdleTimeout
	}
	if c.Server.ShutdownGrace == 0 {
		c.Server.ShutdownGrace = defaultShutdownGrace
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = defaultUpstreamTimeout
	}
	if c.Upstream.DialTimeout == 0 {
		c.Upstream.DialTimeout = defaultDialTimeout
	}
	if c.Upstream.ResponseHeaderTimeout == 0 {
		c.Upstream.ResponseHeaderTimeout = defaultHeaderTimeout
	}
	if c.Upstream.MaxIdleConns == 0 {
		c.Upstream.MaxIdleConns = defaultMaxIdleConns
	}
	if c.Upstream.StreamBuffer == 0 {
		c.Upstream.StreamBuffer = defaultStreamBuffer
	}
	if c.Upstream.ReadSize == 0 {
		c.Upstream.ReadSize = defaultReadSize
	}
	if c.Log.Mode == "" {
		c.Log.Mode = LogModeDevelopment
	}
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.IdleTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must not be negative, got %d", c.Server.MaxBodyBytes)
	}
	if c.Upstream.Timeout < 0 || c.Upstream.DialTimeout < 0 || c.Upstream.ResponseHeaderTimeout < 0 {
		return fmt.Errorf("upstream timeouts must not be negative")
	}
	if c.Upstream.StreamBuffer < 1 {
		return fmt.Errorf("upstream.stream_buffer must be at least 1, got %d", c.Upstream.StreamBuffer)
	}
	if c.Upstream.ReadSize < 1 {
		return fmt.Errorf("upstream.read_size must be at least 1, got %d", c.Upstream.ReadSize)
	}

	switch c.Log.Mode {
	case LogModeDevelopment, LogModeProduction:
	default:
		return fmt.Errorf("log.mode %q must be one of %q or %q", c.Log.Mode, LogModeDevelopment, LogModeProduction)
	}

	for id, endpoint := range c.Platforms {
		if err := validatePlatform(id, endpoint); err != nil {
			return err
		}
	}

	return nil
}

func validatePlatform(id, endpoint string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("platforms: identifier must not be empty")
	}
	if strings.Contains(id, "/") {
		return fmt.Errorf("platform %s: identifier must not contain '/'", id)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("platform %s: parse endpoint: %w", id, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("platform %s: endpoint %q must use http or https", id, endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("platform %s: endpoint %q must include a host", id, endpoint)
	}
	return nil
}
