package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// ErrInstanceClosed is returned by Call after Close.
var ErrInstanceClosed = errors.New("instance closed")

// Instance is a long-lived guest whose exported functions are called
// from the host. Guests built for this model follow the WASI reactor
// convention: _initialize runs at instantiation if exported, and the
// module stays resident afterwards.
type Instance struct {
	engine *Engine
	name   string
	cfg    runConfig
	module api.Module

	mu     sync.Mutex
	closed bool
}

// Instantiate compiles wasm (cached) and brings up a resident guest.
// WithTimeout bounds each Call rather than the instance lifetime.
func (e *Engine) Instantiate(ctx context.Context, wasm []byte, opts ...RunOption) (*Instance, error) {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	compiled, err := e.getCompiled(ctx, wasm)
	if err != nil {
		return nil, err
	}

	name := e.nextModuleName()

	outW := io.Discard
	if cfg.stdout != nil {
		outW = cfg.stdout
	}
	errW := io.Discard
	if cfg.stderr != nil {
		errW = cfg.stderr
	}

	moduleConfig := wazero.NewModuleConfig().
		WithName(name).
		WithStdout(outW).
		WithStderr(errW).
		WithArgs(cfg.args...).
		WithStartFunctions("_initialize")
	for k, v := range cfg.env {
		moduleConfig = moduleConfig.WithEnv(k, v)
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, moduleConfig)
	if err != nil {
		e.host.Release(name)
		return nil, fmt.Errorf("instantiate guest: %w", err)
	}

	e.log.Debug("instance up", "module", name)

	return &Instance{
		engine: e,
		name:   name,
		cfg:    cfg,
		module: mod,
	}, nil
}

// Name returns the module name the guest was instantiated under.
func (i *Instance) Name() string {
	return i.name
}

// Call invokes an exported guest function. Calls are serialized; the
// instance timeout, when set, bounds each call.
func (i *Instance) Call(ctx context.Context, fn string, params ...uint64) ([]uint64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil, ErrInstanceClosed
	}

	f := i.module.ExportedFunction(fn)
	if f == nil {
		return nil, fmt.Errorf("function %q not exported", fn)
	}

	if i.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.cfg.timeout)
		defer cancel()
	}

	results, err := f.Call(ctx, params...)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", fn, err)
	}
	return results, nil
}

// Close releases the guest module and its Caller. Close is idempotent.
func (i *Instance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true

	i.engine.host.Release(i.name)
	return i.module.Close(context.Background())
}
