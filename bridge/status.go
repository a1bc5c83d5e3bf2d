package bridge

import (
	"errors"
	"fmt"

	"github.com/ferryhq/ferry/fetch"
	"github.com/ferryhq/ferry/store"
)

// Status is the numeric result of a boundary operation. 0 means
// success. Failures come from a closed set of negative codes so a
// caller on the far side of the boundary can switch on them
// exhaustively; values never overlap HTTP status codes, which travel
// separately.
type Status int32

const (
	StatusOK          Status = 0
	StatusNullPointer Status = -1
	StatusInvalidUTF8 Status = -2

	// StatusInvalidHeaders: the header JSON was malformed, a value was
	// not a string, or a name/value was not legal on the wire.
	StatusInvalidHeaders Status = -3

	// StatusRequestFailed: anything that prevented the request from
	// completing, from validation through DNS, connect, TLS, timeout,
	// and body read. HTTP error statuses such as 404 are not failures.
	StatusRequestFailed Status = -4

	StatusInvalidHandle Status = -5

	// StatusBufferTooSmall: the destination cannot hold the response
	// body. The handle survives, so the read can be retried. This is
	// the only retryable failure.
	StatusBufferTooSmall Status = -6

	StatusClientInit Status = -7
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNullPointer:
		return "null pointer"
	case StatusInvalidUTF8:
		return "invalid utf-8"
	case StatusInvalidHeaders:
		return "invalid headers"
	case StatusRequestFailed:
		return "request failed"
	case StatusInvalidHandle:
		return "invalid handle"
	case StatusBufferTooSmall:
		return "buffer too small"
	case StatusClientInit:
		return "client init failed"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// statusOf folds an error into the closed status set. Anything not
// recognized counts as a request failure, so a new failure mode can
// never escape the taxonomy.
func statusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, store.ErrNilBuffer):
		return StatusNullPointer
	case errors.Is(err, store.ErrBufferTooSmall):
		return StatusBufferTooSmall
	case errors.Is(err, store.ErrInvalidHandle):
		return StatusInvalidHandle
	case errors.Is(err, fetch.ErrInvalidHeaders):
		return StatusInvalidHeaders
	case errors.Is(err, fetch.ErrClientInit):
		return StatusClientInit
	default:
		return StatusRequestFailed
	}
}
