// Package fetch performs outbound HTTP requests over a shared pooled
// client. Requests run synchronously on the calling goroutine; the
// client itself lives for the life of the process and is built lazily
// on first use.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultMaxURLLength = 8192
	DefaultKeepAlive    = 30 * time.Second
)

var (
	// ErrRequestFailed covers everything that prevents a request from
	// completing: validation, DNS, connect, TLS, timeout, body read.
	ErrRequestFailed = errors.New("request failed")

	// ErrInvalidHeaders means the header JSON could not be turned into
	// well-formed request headers.
	ErrInvalidHeaders = errors.New("invalid headers")

	// ErrClientInit means the shared client could not be constructed.
	// The construction is retried on the next request.
	ErrClientInit = errors.New("client init failed")
)

// Config controls outbound request policy.
type Config struct {
	// AllowedHosts restricts requests to the listed hosts and their
	// subdomains. Empty means unrestricted.
	AllowedHosts []string

	// MaxBodySize caps the response body in bytes. A response larger
	// than the cap fails the request rather than being truncated,
	// since callers size their buffers from the reported length.
	// 0 means no cap.
	MaxBodySize int64

	// MaxURLLength caps the request URL. 0 means DefaultMaxURLLength.
	MaxURLLength int

	// RootCAFile, when set, replaces the system roots for TLS
	// verification. A file that cannot be loaded surfaces as
	// ErrClientInit on the first request.
	RootCAFile string

	// RequestsPerSecond throttles outbound requests. 0 means no limit.
	RequestsPerSecond float64

	// KeepAlive is the TCP keep-alive interval. 0 means
	// DefaultKeepAlive.
	KeepAlive time.Duration

	Logger *slog.Logger
}

// Request describes a single outbound request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte

	// Timeout bounds the whole request including the body read.
	// Zero or negative means no timeout.
	Timeout time.Duration
}

// Response is a fully buffered response.
type Response struct {
	Status uint32
	Body   []byte
}

// Client validates and executes requests. All methods are safe for
// concurrent use; the underlying *http.Client is shared so connections
// pool across callers.
type Client struct {
	cfg     Config
	limiter *rate.Limiter
	log     *slog.Logger

	mu   sync.Mutex
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.MaxURLLength == 0 {
		cfg.MaxURLLength = DefaultMaxURLLength
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	c := &Client{
		cfg: cfg,
		log: cfg.Logger.With("component", "fetch"),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// Do executes req and buffers the full response body. Every failure is
// wrapped in ErrRequestFailed or ErrClientInit so callers can fold it
// into a closed result code without losing the underlying message.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit: %v", ErrRequestFailed, err)
		}
	}

	hc, err := c.client()
	if err != nil {
		return nil, err
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := hc.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := c.readBody(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrRequestFailed, err)
	}

	c.log.Debug("request completed",
		"method", req.Method,
		"url", req.URL,
		"status", resp.StatusCode,
		"bytes", len(respBody),
		"duration", time.Since(start),
	)

	return &Response{Status: uint32(resp.StatusCode), Body: respBody}, nil
}

func (c *Client) validate(req Request) error {
	switch req.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return fmt.Errorf("%w: unsupported method: %s", ErrRequestFailed, req.Method)
	}

	if req.URL == "" {
		return fmt.Errorf("%w: url required", ErrRequestFailed)
	}
	if len(req.URL) > c.cfg.MaxURLLength {
		return fmt.Errorf("%w: url exceeds max length", ErrRequestFailed)
	}

	parsed, err := url.Parse(req.URL)
	if err != nil {
		return fmt.Errorf("%w: invalid url", ErrRequestFailed)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrRequestFailed)
	}

	if len(c.cfg.AllowedHosts) > 0 {
		host := parsed.Hostname()
		if !c.isHostAllowed(host) {
			return fmt.Errorf("%w: host not allowed: %s", ErrRequestFailed, host)
		}
	}
	return nil
}

func (c *Client) isHostAllowed(host string) bool {
	for _, allowed := range c.cfg.AllowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func (c *Client) readBody(r io.Reader) ([]byte, error) {
	if c.cfg.MaxBodySize <= 0 {
		return io.ReadAll(r)
	}
	b, err := io.ReadAll(io.LimitReader(r, c.cfg.MaxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > c.cfg.MaxBodySize {
		return nil, fmt.Errorf("response body exceeds %d byte limit", c.cfg.MaxBodySize)
	}
	return b, nil
}
