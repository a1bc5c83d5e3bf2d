// Package hostabi exports the boundary operations to WebAssembly guests
// as host functions over linear memory.
//
// Guests import the module named by [ModuleName] and call:
//
//	http_get(url, headers, timeout_ms, handle_out, len_out, status_out) -> i32
//	http_post(url, headers, body, body_len, timeout_ms, handle_out, len_out, status_out) -> i32
//	http_put(...)    same shape as http_post
//	http_patch(...)  same shape as http_post
//	http_delete(...) same shape as http_get
//	http_read_response(handle, buf, buf_len) -> i32
//	http_free_response(handle) -> i32
//	http_get_last_error(buf, buf_len) -> i32
//	http_shutdown()
//
// Pointer arguments are u32 offsets into the guest's linear memory; 0 is
// NULL. Strings are NUL-terminated UTF-8. The request calls return 0 on
// success and a negative [bridge.Status] code on failure, reporting the
// stored body's byte length through len_out so the guest can allocate an
// exact buffer before http_read_response. http_read_response returns the
// byte count written (or a negative code); http_get_last_error copies
// the calling module's last error message plus a NUL terminator and
// returns the bytes written excluding the terminator.
//
// # Protocol
//
//	 len_out = 0
//	 rc = http_get("https://api.example.com/data", 0, 5000, &h, &len_out, &code)
//	 if rc != 0 { http_get_last_error(msg, sizeof msg); ... }
//	 buf = alloc(len_out)
//	 n = http_read_response(h, buf, len_out)
//
// A successful read consumes the handle. A too-small buffer returns -6
// and leaves the handle valid for a retry; every other failure, and
// success, finishes it. Handles that will never be read must be passed
// to http_free_response or they stay resident until http_shutdown.
//
// # Caller identity
//
// Each guest module gets its own [bridge.Caller], keyed by module name,
// so error messages never leak between guests. Instantiate guests with
// distinct names; call [Host.Release] when an instance closes.
//
// # Bounds checks
//
// Every pointer and length is validated here, against the calling
// module's memory, before it touches the store or the network. The rest
// of the library deals only in Go slices. The [Memory] interface is the
// subset of wazero's api.Memory the checks need; [ByteMemory] backs
// tests with a plain slice.
package hostabi
