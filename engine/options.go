package engine

import (
	"io"
	"log/slog"
	"time"
)

// Option configures the Engine at creation time.
type Option func(*engineConfig)

type engineConfig struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32 // Max memory pages (each page = 64KB), 0 = default (4GB)
	logger           *slog.Logger
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		logger: slog.New(slog.DiscardHandler),
	}
}

// WithDiskCache enables a persistent compilation cache for faster CLI
// startup. Optionally provide a custom directory; otherwise uses
// ~/.cache/ferry or XDG_CACHE_HOME/ferry.
//
// Examples:
//
//	engine.New(b, engine.WithDiskCache())             // default dir
//	engine.New(b, engine.WithDiskCache("/tmp/cache")) // custom dir
func WithDiskCache(dir ...string) Option {
	return func(c *engineConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit sets the maximum memory available to guests.
// Each page is 64KB. Examples:
//   - WithMemoryLimit(16) = 1MB max
//   - WithMemoryLimit(256) = 16MB max
//   - WithMemoryLimit(1024) = 64MB max
//
// Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) Option {
	return func(c *engineConfig) {
		c.memoryLimitPages = pages
	}
}

// WithLogger routes engine and boundary logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = l
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)

// RunOption configures a single guest run or instance.
type RunOption func(*runConfig)

type runConfig struct {
	timeout time.Duration
	args    []string
	env     map[string]string
	stdout  io.Writer
	stderr  io.Writer
}

func defaultRunConfig() runConfig {
	return runConfig{
		timeout: 30 * time.Second,
		env:     make(map[string]string),
	}
}

// WithTimeout sets the maximum execution time. Zero disables the
// limit.
func WithTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// WithArgs sets the guest's argv. By WASI convention the first element
// is the program name.
func WithArgs(args ...string) RunOption {
	return func(c *runConfig) {
		c.args = args
	}
}

// WithEnv adds an environment variable visible to the guest.
func WithEnv(key, value string) RunOption {
	return func(c *runConfig) {
		c.env[key] = value
	}
}

// WithStdout streams guest stdout to w instead of capturing it in
// Result.Output.
func WithStdout(w io.Writer) RunOption {
	return func(c *runConfig) {
		c.stdout = w
	}
}

// WithStderr streams guest stderr to w instead of capturing it in
// Result.Output.
func WithStderr(w io.Writer) RunOption {
	return func(c *runConfig) {
		c.stderr = w
	}
}
