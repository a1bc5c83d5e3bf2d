// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit
// config is given.
var configSearchPaths = []string{
	"/etc/ferry/config.toml",
	"ferry.toml",
}

// Config is the top-level application configuration.
type Config struct {
	HTTP    HTTPConfig    `toml:"http"`
	Engine  EngineConfig  `toml:"engine"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

// HTTPConfig bounds outbound requests made on behalf of guests.
type HTTPConfig struct {
	AllowedHosts      []string `toml:"allowed_hosts"`       // empty means unrestricted
	MaxBodyBytes      int64    `toml:"max_body_bytes"`      // 0 means no cap
	MaxURLLength      int      `toml:"max_url_length"`      // 0 means "use default" (8192)
	TimeoutSeconds    int      `toml:"timeout_seconds"`     // repl default; guests pass their own
	RootCAFile        string   `toml:"root_ca_file"`
	RequestsPerSecond float64  `toml:"requests_per_second"` // 0 means unlimited
}

// EngineConfig holds guest runtime settings.
type EngineConfig struct {
	DiskCache        bool   `toml:"disk_cache"`
	CacheDir         string `toml:"cache_dir"`
	MemoryLimitPages uint32 `toml:"memory_limit_pages"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Load reads the TOML config at path. When path is empty it searches
// /etc/ferry/config.toml then ferry.toml; no file anywhere yields the
// defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = findConfig()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must be non-negative; got %d", c.HTTP.MaxBodyBytes)
	}
	if c.HTTP.MaxURLLength < 0 {
		return fmt.Errorf("http.max_url_length must be non-negative; got %d", c.HTTP.MaxURLLength)
	}
	if c.HTTP.TimeoutSeconds < 0 {
		return fmt.Errorf("http.timeout_seconds must be non-negative; got %d", c.HTTP.TimeoutSeconds)
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be non-negative; got %v", c.HTTP.RequestsPerSecond)
	}

	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			return fmt.Errorf("metrics.addr must be host:port; got %q: %w", c.Metrics.Addr, err)
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults. Fields
// where zero is meaningful (allowed_hosts, max_body_bytes,
// requests_per_second, timeout_seconds) are left alone; TOML cannot
// distinguish an explicit 0 from an omitted key.
func (c *Config) setDefaults() {
	if c.HTTP.MaxURLLength == 0 {
		c.HTTP.MaxURLLength = 8192
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = "127.0.0.1:9090"
	}
}

// findConfig returns the first config path that exists, or empty
// string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
