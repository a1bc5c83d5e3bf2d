package hostabi

import (
	"context"
	"unicode/utf8"

	"github.com/ferryhq/ferry/bridge"
	"github.com/ferryhq/ferry/store"
)

// request marshals one http_* call out of guest memory, runs it, and
// writes the outputs back. All pointer validation happens here; the
// bridge below sees only Go values.
func (h *Host) request(ctx context.Context, c *bridge.Caller, mem Memory, method string, urlPtr, headersPtr, bodyPtr uint32, bodyLen, timeoutMS int32, handleOut, lenOut, statusOut uint32) int32 {
	if urlPtr == 0 {
		return int32(c.Fail(bridge.StatusNullPointer, "url pointer is null"))
	}
	url, ok := readCString(mem, urlPtr)
	if !ok {
		return int32(c.Fail(bridge.StatusNullPointer, "url pointer is out of range"))
	}
	if !utf8.ValidString(url) {
		return int32(c.Fail(bridge.StatusInvalidUTF8, "url contains invalid utf-8"))
	}

	// A null headers pointer means no headers.
	var headersJSON string
	if headersPtr != 0 {
		headersJSON, ok = readCString(mem, headersPtr)
		if !ok {
			return int32(c.Fail(bridge.StatusNullPointer, "headers pointer is out of range"))
		}
		if !utf8.ValidString(headersJSON) {
			return int32(c.Fail(bridge.StatusInvalidUTF8, "headers json contains invalid utf-8"))
		}
	}

	// A null body pointer or non-positive length means an empty body.
	var body []byte
	if bodyPtr != 0 && bodyLen > 0 {
		body, ok = mem.Read(bodyPtr, uint32(bodyLen))
		if !ok {
			return int32(c.Fail(bridge.StatusNullPointer, "body pointer is out of range"))
		}
	}

	res, s := c.Request(ctx, method, url, headersJSON, body, timeoutMS)
	if s != bridge.StatusOK {
		return int32(s)
	}

	if !writeRequestOutputs(mem, res, handleOut, lenOut, statusOut) {
		// The guest can never learn this handle, so don't leak it.
		c.Free(res.Handle)
		return int32(c.Fail(bridge.StatusNullPointer, "output pointer is out of range"))
	}
	return int32(bridge.StatusOK)
}

// writeRequestOutputs writes each output the guest asked for. A null
// out-pointer skips that output rather than failing the call.
func writeRequestOutputs(mem Memory, res bridge.RequestResult, handleOut, lenOut, statusOut uint32) bool {
	if handleOut != 0 && !mem.WriteUint64Le(handleOut, uint64(res.Handle)) {
		return false
	}
	if lenOut != 0 && !mem.WriteUint32Le(lenOut, uint32(res.BodyLen)) {
		return false
	}
	if statusOut != 0 && !mem.WriteUint32Le(statusOut, res.HTTPStatus) {
		return false
	}
	return true
}

// readResponse drains the stored body for handle directly into guest
// memory and returns the byte count, or a negative status code. The
// drain copies under the store lock into a view of guest memory, so
// the entry moves across the boundary in one step.
func (h *Host) readResponse(c *bridge.Caller, mem Memory, handle store.Handle, bufPtr uint32, bufLen int32) int32 {
	if bufPtr == 0 {
		return int32(c.Fail(bridge.StatusNullPointer, "response buffer pointer is null"))
	}

	view := []byte{}
	if bufLen > 0 {
		var ok bool
		view, ok = mem.Read(bufPtr, uint32(bufLen))
		if !ok {
			return int32(c.Fail(bridge.StatusNullPointer, "response buffer is out of range"))
		}
	}

	n, s := c.Read(handle, view)
	if s != bridge.StatusOK {
		return int32(s)
	}
	return n
}

// lastError copies the caller's last error message into guest memory
// as a NUL-terminated string, truncating silently if it does not fit,
// and returns the bytes written excluding the terminator. The slot is
// left untouched so the call can be retried with a bigger buffer.
func (h *Host) lastError(c *bridge.Caller, mem Memory, bufPtr uint32, bufLen int32) int32 {
	if bufPtr == 0 || bufLen <= 0 {
		return int32(bridge.StatusNullPointer)
	}

	msg := c.LastError()
	n := len(msg)
	if max := int(bufLen) - 1; n > max {
		n = max
	}

	out := make([]byte, n+1)
	copy(out, msg[:n])
	if !mem.Write(bufPtr, out) {
		return int32(bridge.StatusNullPointer)
	}
	return int32(n)
}
