package hostabi

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/ferryhq/ferry/bridge"
	"github.com/ferryhq/ferry/store"
)

// ModuleName is the import namespace guests use for the boundary
// functions.
const ModuleName = "ferry"

// Host adapts a [bridge.Bridge] to guest-callable functions. One Host
// serves every guest on its runtime; per-guest state is limited to the
// error slot of each module's Caller.
type Host struct {
	bridge *bridge.Bridge
	log    *slog.Logger

	mu      sync.Mutex
	callers map[string]*bridge.Caller
}

// Option configures a Host.
type Option func(*Host)

// WithLogger routes boundary call logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		h.log = l
	}
}

func New(b *bridge.Bridge, opts ...Option) *Host {
	h := &Host{
		bridge:  b,
		log:     slog.New(slog.DiscardHandler),
		callers: make(map[string]*bridge.Caller),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With("component", "hostabi")
	return h
}

// Instantiate registers the boundary functions on r under [ModuleName].
// Call once per runtime, before instantiating guests.
func (h *Host) Instantiate(ctx context.Context, r wazero.Runtime) error {
	builder := r.NewHostModuleBuilder(ModuleName)

	builder.NewFunctionBuilder().WithFunc(h.httpGet).Export("http_get")
	builder.NewFunctionBuilder().WithFunc(h.httpPost).Export("http_post")
	builder.NewFunctionBuilder().WithFunc(h.httpPut).Export("http_put")
	builder.NewFunctionBuilder().WithFunc(h.httpPatch).Export("http_patch")
	builder.NewFunctionBuilder().WithFunc(h.httpDelete).Export("http_delete")
	builder.NewFunctionBuilder().WithFunc(h.httpReadResponse).Export("http_read_response")
	builder.NewFunctionBuilder().WithFunc(h.httpFreeResponse).Export("http_free_response")
	builder.NewFunctionBuilder().WithFunc(h.httpGetLastError).Export("http_get_last_error")
	builder.NewFunctionBuilder().WithFunc(h.httpShutdown).Export("http_shutdown")

	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("instantiate %s host module: %w", ModuleName, err)
	}
	return nil
}

// caller returns the Caller bound to m's name, creating it on first
// use. Guests must be instantiated with distinct module names or they
// will share an error slot.
func (h *Host) caller(m api.Module) *bridge.Caller {
	name := m.Name()

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.callers[name]
	if !ok {
		c = h.bridge.NewCaller()
		h.callers[name] = c
		h.log.Debug("caller bound", "module", name)
	}
	return c
}

// Release drops the Caller bound to a module name. Call it when the
// guest instance closes; the name gets a fresh Caller if seen again.
func (h *Host) Release(name string) {
	h.mu.Lock()
	delete(h.callers, name)
	h.mu.Unlock()
}

func (h *Host) httpGet(ctx context.Context, m api.Module, urlPtr, headersPtr uint32, timeoutMS int32, handleOut, lenOut, statusOut uint32) int32 {
	return h.request(ctx, h.caller(m), m.Memory(), "GET", urlPtr, headersPtr, 0, 0, timeoutMS, handleOut, lenOut, statusOut)
}

func (h *Host) httpPost(ctx context.Context, m api.Module, urlPtr, headersPtr, bodyPtr uint32, bodyLen, timeoutMS int32, handleOut, lenOut, statusOut uint32) int32 {
	return h.request(ctx, h.caller(m), m.Memory(), "POST", urlPtr, headersPtr, bodyPtr, bodyLen, timeoutMS, handleOut, lenOut, statusOut)
}

func (h *Host) httpPut(ctx context.Context, m api.Module, urlPtr, headersPtr, bodyPtr uint32, bodyLen, timeoutMS int32, handleOut, lenOut, statusOut uint32) int32 {
	return h.request(ctx, h.caller(m), m.Memory(), "PUT", urlPtr, headersPtr, bodyPtr, bodyLen, timeoutMS, handleOut, lenOut, statusOut)
}

func (h *Host) httpPatch(ctx context.Context, m api.Module, urlPtr, headersPtr, bodyPtr uint32, bodyLen, timeoutMS int32, handleOut, lenOut, statusOut uint32) int32 {
	return h.request(ctx, h.caller(m), m.Memory(), "PATCH", urlPtr, headersPtr, bodyPtr, bodyLen, timeoutMS, handleOut, lenOut, statusOut)
}

func (h *Host) httpDelete(ctx context.Context, m api.Module, urlPtr, headersPtr uint32, timeoutMS int32, handleOut, lenOut, statusOut uint32) int32 {
	return h.request(ctx, h.caller(m), m.Memory(), "DELETE", urlPtr, headersPtr, 0, 0, timeoutMS, handleOut, lenOut, statusOut)
}

func (h *Host) httpReadResponse(ctx context.Context, m api.Module, handle uint64, bufPtr uint32, bufLen int32) int32 {
	h.log.Debug("http_read_response", "module", m.Name(), "handle", handle, "buf_len", bufLen)
	return h.readResponse(h.caller(m), m.Memory(), store.Handle(handle), bufPtr, bufLen)
}

func (h *Host) httpFreeResponse(ctx context.Context, m api.Module, handle uint64) int32 {
	h.log.Debug("http_free_response", "module", m.Name(), "handle", handle)
	return int32(h.caller(m).Free(store.Handle(handle)))
}

func (h *Host) httpGetLastError(ctx context.Context, m api.Module, bufPtr uint32, bufLen int32) int32 {
	return h.lastError(h.caller(m), m.Memory(), bufPtr, bufLen)
}

func (h *Host) httpShutdown(ctx context.Context, m api.Module) {
	h.log.Debug("http_shutdown", "module", m.Name())
	h.bridge.Shutdown()
}
