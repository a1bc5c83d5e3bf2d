package bridge

import (
	"log/slog"

	"github.com/ferryhq/ferry/fetch"
	"github.com/ferryhq/ferry/metrics"
)

// Option configures a Bridge at creation time.
type Option func(*config)

type config struct {
	fetch   fetch.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func defaultConfig() config {
	return config{
		logger: slog.New(slog.DiscardHandler),
	}
}

// WithFetchConfig sets the outbound request policy: allowed hosts,
// body and URL limits, root CAs, rate limit.
func WithFetchConfig(fc fetch.Config) Option {
	return func(c *config) {
		c.fetch = fc
	}
}

// WithLogger routes bridge and transport logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMetrics attaches Prometheus collectors. The pending-response
// gauge is registered against the new Bridge's store.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}
