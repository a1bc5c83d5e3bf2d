package bridge

import (
	"context"
	"time"

	"github.com/ferryhq/ferry/fetch"
	"github.com/ferryhq/ferry/store"
)

// Caller is one logical calling thread's view of the boundary. Each
// Caller owns a private error slot, so a failure on one can never be
// observed through another.
//
// A Caller is not safe for concurrent use. The slot is only meaningful
// when reads and writes come from a single thread of execution, which
// is exactly how boundary callers behave; create more Callers instead
// of locking one.
type Caller struct {
	b       *Bridge
	lastErr string
}

// RequestResult carries the scalar outputs of a successful request.
type RequestResult struct {
	// Handle addresses the stored response body until it is read or
	// freed.
	Handle store.Handle

	// BodyLen is the exact size of the stored body in bytes. Allocate
	// a buffer of this size before calling Read.
	BodyLen int32

	// HTTPStatus is the wire status code, e.g. 200 or 404.
	HTTPStatus uint32
}

// Request performs an HTTP request and stores the response for
// two-phase retrieval. headersJSON is a flat JSON object of string
// values; empty means no headers. timeoutMS bounds the whole request
// in milliseconds; zero or negative means no timeout. The request runs
// synchronously on the calling goroutine.
func (c *Caller) Request(ctx context.Context, method, url, headersJSON string, body []byte, timeoutMS int32) (RequestResult, Status) {
	c.begin()
	start := time.Now()

	res, err := c.request(ctx, method, url, headersJSON, body, timeoutMS)
	s := c.finish(err)
	c.b.observe(method, s, time.Since(start), int(res.BodyLen))
	if s != StatusOK {
		c.b.log.Debug("request failed", "method", method, "url", url, "status", s.String(), "error", c.lastErr)
	}
	return res, s
}

func (c *Caller) request(ctx context.Context, method, url, headersJSON string, body []byte, timeoutMS int32) (RequestResult, error) {
	header, err := fetch.ParseHeaderJSON(headersJSON)
	if err != nil {
		return RequestResult{}, err
	}

	var timeout time.Duration
	if timeoutMS > 0 {
		timeout = time.Duration(timeoutMS) * time.Millisecond
	}

	resp, err := c.b.client.Do(ctx, fetch.Request{
		Method:  method,
		URL:     url,
		Header:  header,
		Body:    body,
		Timeout: timeout,
	})
	if err != nil {
		return RequestResult{}, err
	}

	h := c.b.store.Insert(resp.Body, resp.Status)
	return RequestResult{
		Handle:     h,
		BodyLen:    int32(len(resp.Body)),
		HTTPStatus: resp.Status,
	}, nil
}

// Read drains the stored response for h into buf and returns the byte
// count. On StatusBufferTooSmall the handle stays valid and the call
// can be retried with a larger buffer; any other failure means h
// addresses nothing. A successful Read consumes the handle.
func (c *Caller) Read(h store.Handle, buf []byte) (int32, Status) {
	c.begin()
	n, err := c.b.store.Drain(h, buf)
	return int32(n), c.finish(err)
}

// Free discards the stored response for h without reading it. Use it
// on error paths that will never read the body; an unread, unfreed
// handle leaks its response for the life of the process.
func (c *Caller) Free(h store.Handle) Status {
	c.begin()
	return c.finish(c.b.store.Discard(h))
}

// LastError returns the message from this Caller's most recent failed
// operation, or "" when it succeeded. Reading does not clear the slot;
// the next operation does.
func (c *Caller) LastError() string {
	return c.lastErr
}

// begin clears the error slot. Every boundary operation calls it
// first, so a stale message can never be attributed to the current
// call.
func (c *Caller) begin() {
	c.lastErr = ""
}

// finish records err in the slot and folds it into a Status.
func (c *Caller) finish(err error) Status {
	if err == nil {
		return StatusOK
	}
	c.lastErr = err.Error()
	return statusOf(err)
}

// Fail records msg in the error slot and returns s unchanged. It is
// the entry point for marshaling layers that must reject a call before
// any Bridge operation runs; like any operation it replaces whatever
// the slot held.
func (c *Caller) Fail(s Status, msg string) Status {
	c.lastErr = msg
	return s
}
