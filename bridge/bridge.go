// Package bridge exposes HTTP request, read, and free operations in a
// form that crosses a foreign-function boundary: scalar results, opaque
// handles, a closed set of numeric status codes, and a per-caller error
// message slot in place of Go errors.
package bridge

import (
	"log/slog"
	"time"

	"github.com/ferryhq/ferry/fetch"
	"github.com/ferryhq/ferry/metrics"
	"github.com/ferryhq/ferry/store"
)

// Bridge owns the response store and the shared transport client. One
// Bridge serves the whole process; hand out one [Caller] per logical
// calling thread.
type Bridge struct {
	store   *store.Store
	client  *fetch.Client
	log     *slog.Logger
	metrics *metrics.Metrics
}

func New(opts ...Option) *Bridge {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.fetch.Logger == nil {
		cfg.fetch.Logger = cfg.logger
	}

	b := &Bridge{
		store:   store.New(),
		client:  fetch.New(cfg.fetch),
		log:     cfg.logger.With("component", "bridge"),
		metrics: cfg.metrics,
	}
	if b.metrics != nil {
		b.metrics.TrackPending(b.store.Len)
	}
	return b
}

// NewCaller returns a fresh Caller with an empty error slot. Callers
// are cheap; create one per goroutine or guest instance rather than
// sharing one across threads of execution.
func (b *Bridge) NewCaller() *Caller {
	return &Caller{b: b}
}

// Shutdown invalidates every outstanding handle by clearing the store.
// The transport client is left alone: it is tied to the process
// lifetime. A request already in flight will still complete and store
// its response; such late entries sit in the store until drained,
// freed, or cleared by the next Shutdown.
func (b *Bridge) Shutdown() {
	dropped := b.store.Len()
	b.store.Clear()
	b.log.Info("shutdown", "dropped", dropped)
}

// Pending reports how many responses are stored and not yet read or
// freed. A count that grows without bound usually means a caller is
// dropping handles.
func (b *Bridge) Pending() int {
	return b.store.Len()
}

func (b *Bridge) observe(method string, s Status, duration time.Duration, respBytes int) {
	if b.metrics == nil {
		return
	}
	label := metrics.NormalizeMethod(method)
	b.metrics.RequestsTotal.WithLabelValues(label, s.String()).Inc()
	b.metrics.RequestDuration.WithLabelValues(label).Observe(duration.Seconds())
	if respBytes > 0 {
		b.metrics.ResponseBytes.Observe(float64(respBytes))
	}
}
