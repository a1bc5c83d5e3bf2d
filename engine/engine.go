package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/ferryhq/ferry/bridge"
	"github.com/ferryhq/ferry/hostabi"
)

// Result holds the output and metadata from a guest run.
type Result struct {
	Output   string
	Duration time.Duration
	Error    error
}

// Engine manages the WASM runtime and compiled guest caching.
type Engine struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	host     *hostabi.Host
	log      *slog.Logger
	compiled map[uint64]wazero.CompiledModule
	nextID   atomic.Uint64
	mu       sync.RWMutex
	closed   bool
}

// New creates an Engine wired to b. WASI and the ferry host module are
// instantiated on the runtime before any guest runs.
func New(b *bridge.Bridge, opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	host := hostabi.New(b, hostabi.WithLogger(cfg.logger))
	if err := host.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, err
	}

	return &Engine{
		runtime:  rt,
		cache:    cache,
		host:     host,
		log:      cfg.logger.With("component", "engine"),
		compiled: make(map[uint64]wazero.CompiledModule),
	}, nil
}

// Run executes a guest's _start and returns its captured output. The
// guest's Caller is released when the run finishes; responses it never
// read stay in the store until Shutdown.
func (e *Engine) Run(ctx context.Context, wasm []byte, opts ...RunOption) Result {
	start := time.Now()

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	compiled, err := e.getCompiled(ctx, wasm)
	if err != nil {
		return Result{Error: err, Duration: time.Since(start)}
	}

	name := e.nextModuleName()
	defer e.host.Release(name)

	var stdout, stderr bytes.Buffer
	outW := io.Writer(&stdout)
	if cfg.stdout != nil {
		outW = cfg.stdout
	}
	errW := io.Writer(&stderr)
	if cfg.stderr != nil {
		errW = cfg.stderr
	}

	moduleConfig := wazero.NewModuleConfig().
		WithName(name).
		WithStdout(outW).
		WithStderr(errW).
		WithArgs(cfg.args...)
	for k, v := range cfg.env {
		moduleConfig = moduleConfig.WithEnv(k, v)
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, moduleConfig)
	if mod != nil {
		mod.Close(context.Background())
	}

	result := Result{
		Output:   stdout.String() + stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.Error = fmt.Errorf("timeout after %v", cfg.timeout)
		} else {
			var exit *sys.ExitError
			if errors.As(err, &exit) {
				if exit.ExitCode() != 0 {
					result.Error = fmt.Errorf("guest exit code %d", exit.ExitCode())
				}
			} else {
				result.Error = fmt.Errorf("guest failed: %w", err)
			}
		}
	}

	e.log.Debug("guest ran", "module", name, "duration", result.Duration, "error", result.Error)

	return result
}

// getCompiled returns a cached compiled module, compiling if necessary.
// Guests are keyed by content hash, so byte-identical modules compile
// once.
func (e *Engine) getCompiled(ctx context.Context, wasm []byte) (wazero.CompiledModule, error) {
	key := xxhash.Sum64(wasm)

	e.mu.RLock()
	if compiled, ok := e.compiled[key]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if compiled, ok := e.compiled[key]; ok {
		return compiled, nil
	}

	start := time.Now()
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("compile guest: %w", err)
	}
	e.log.Debug("guest compiled", "hash", fmt.Sprintf("%016x", key), "duration", time.Since(start))

	e.compiled[key] = compiled
	return compiled, nil
}

func (e *Engine) nextModuleName() string {
	return fmt.Sprintf("guest-%d", e.nextID.Add(1))
}

// Close releases all resources held by the Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()

	var errs []error
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "ferry")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "ferry")
	}
	return filepath.Join(os.TempDir(), "ferry-cache")
}
