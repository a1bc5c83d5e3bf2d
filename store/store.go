// Package store holds buffered HTTP responses on behalf of callers that
// cannot manage host memory. Each response is addressed by an opaque
// [Handle] and is retrieved in two phases: the caller learns the body
// length when the response is inserted, allocates a buffer of that size,
// and drains the body into it.
package store

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Handle identifies a stored response. Handles are process-unique,
// strictly increasing, and never reused. 0 is reserved as the "no
// handle" sentinel and is never issued.
type Handle uint64

// None is the zero Handle; no stored response is ever addressed by it.
const None Handle = 0

// Response is a buffered HTTP response waiting to be drained.
type Response struct {
	Body   []byte
	Status uint32
}

var (
	// ErrInvalidHandle means the handle was never issued or its entry
	// has already been consumed.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrBufferTooSmall means the destination cannot hold the body.
	// The entry is kept, so the drain can be retried with a larger
	// buffer. This is the only failure a handle survives.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrNilBuffer means Drain was given a nil destination.
	ErrNilBuffer = errors.New("nil destination buffer")
)

// Store is a table of pending responses. All methods are safe for
// concurrent use.
type Store struct {
	next    atomic.Uint64
	mu      sync.Mutex
	entries map[Handle]Response
}

func New() *Store {
	return &Store{entries: make(map[Handle]Response)}
}

// Insert stores a response and returns its handle. The caller should
// report len(body) alongside the handle so the receiver can size its
// drain buffer up front.
func (s *Store) Insert(body []byte, status uint32) Handle {
	h := Handle(s.next.Add(1))
	s.mu.Lock()
	s.entries[h] = Response{Body: body, Status: status}
	s.mu.Unlock()
	return h
}

// Drain copies the body for h into buf, removes the entry, and returns
// the number of bytes copied. On ErrBufferTooSmall the entry stays in
// the table; every other error means h addresses nothing. The size
// check and the removal happen under one lock, so two racing drains
// resolve to exactly one winner.
func (s *Store) Drain(h Handle, buf []byte) (int, error) {
	if buf == nil {
		return 0, ErrNilBuffer
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resp, ok := s.entries[h]
	if !ok {
		return 0, fmt.Errorf("%w: %d already drained or never issued", ErrInvalidHandle, h)
	}
	if len(resp.Body) > len(buf) {
		return 0, fmt.Errorf("%w: need %d bytes, got %d", ErrBufferTooSmall, len(resp.Body), len(buf))
	}

	delete(s.entries, h)
	return copy(buf, resp.Body), nil
}

// Discard removes the entry for h without copying it. Use it on error
// paths where the handle will never be drained. Discard is not
// idempotent: a second call reports ErrInvalidHandle like any other
// consumed handle.
func (s *Store) Discard(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[h]; !ok {
		return fmt.Errorf("%w: %d already discarded or never issued", ErrInvalidHandle, h)
	}
	delete(s.entries, h)
	return nil
}

// Clear removes every entry. Outstanding handles become invalid.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[Handle]Response)
	s.mu.Unlock()
}

// Len reports the number of pending responses. Useful for detecting
// handle leaks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
