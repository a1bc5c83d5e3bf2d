package ferry

import (
	"strings"
	"testing"
	"time"
)

// Integration tests - full guest execution through the one-call API.
// Unit tests for individual components live in their packages.

// helloGuest writes "hello" to stdout via wasi fd_write and returns.
var helloGuest = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x0c, 0x02, 0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f, 0x60, 0x00, 0x00,
	0x02, 0x23, 0x01,
	0x16, 0x77, 0x61, 0x73, 0x69, 0x5f, 0x73, 0x6e, 0x61, 0x70, 0x73, 0x68,
	0x6f, 0x74, 0x5f, 0x70, 0x72, 0x65, 0x76, 0x69, 0x65, 0x77, 0x31,
	0x08, 0x66, 0x64, 0x5f, 0x77, 0x72, 0x69, 0x74, 0x65, 0x00, 0x00,
	0x03, 0x02, 0x01, 0x01,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x13, 0x02,
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00,
	0x06, 0x5f, 0x73, 0x74, 0x61, 0x72, 0x74, 0x00, 0x01,
	0x0a, 0x0f, 0x01, 0x0d, 0x00,
	0x41, 0x01, 0x41, 0x00, 0x41, 0x01, 0x41, 0x14, 0x10, 0x00, 0x1a, 0x0b,
	0x0b, 0x13, 0x01, 0x00, 0x41, 0x00, 0x0b, 0x0d,
	0x08, 0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00,
	0x68, 0x65, 0x6c, 0x6c, 0x6f,
}

// spinGuest loops forever in _start.
var spinGuest = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x0a, 0x01, 0x06, 0x5f, 0x73, 0x74, 0x61, 0x72, 0x74, 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x03, 0x40, 0x0c, 0x00, 0x0b, 0x0b,
}

// probeGuest calls ferry.http_get with a null URL and exits with the
// status plus one, so a null-pointer status means a clean exit.
var probeGuest = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x12, 0x03,
	0x60, 0x06, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f,
	0x60, 0x01, 0x7f, 0x00,
	0x60, 0x00, 0x00,
	0x02, 0x35, 0x02,
	0x05, 0x66, 0x65, 0x72, 0x72, 0x79,
	0x08, 0x68, 0x74, 0x74, 0x70, 0x5f, 0x67, 0x65, 0x74, 0x00, 0x00,
	0x16, 0x77, 0x61, 0x73, 0x69, 0x5f, 0x73, 0x6e, 0x61, 0x70, 0x73, 0x68,
	0x6f, 0x74, 0x5f, 0x70, 0x72, 0x65, 0x76, 0x69, 0x65, 0x77, 0x31,
	0x09, 0x70, 0x72, 0x6f, 0x63, 0x5f, 0x65, 0x78, 0x69, 0x74, 0x00, 0x01,
	0x03, 0x02, 0x01, 0x02,
	0x07, 0x0a, 0x01, 0x06, 0x5f, 0x73, 0x74, 0x61, 0x72, 0x74, 0x00, 0x02,
	0x0a, 0x17, 0x01, 0x15, 0x00,
	0x41, 0x00, 0x41, 0x00, 0x41, 0x00, 0x41, 0x00, 0x41, 0x00, 0x41, 0x00,
	0x10, 0x00, 0x41, 0x01, 0x6a, 0x10, 0x01, 0x0b,
}

func TestRunBasicGuest(t *testing.T) {
	result := Run(helloGuest, DefaultConfig())
	if result.Error != nil {
		t.Fatalf("unexpected error: %v", result.Error)
	}
	if result.Output != "hello" {
		t.Errorf("expected 'hello', got %q", result.Output)
	}
}

func TestRunBoundaryAvailable(t *testing.T) {
	result := Run(probeGuest, DefaultConfig())
	if result.Error != nil {
		t.Fatalf("guest did not observe the boundary status: %v", result.Error)
	}
}

func TestRunTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 100 * time.Millisecond

	result := Run(spinGuest, cfg)
	if result.Error == nil || !strings.Contains(result.Error.Error(), "timeout") {
		t.Errorf("error = %v", result.Error)
	}
}

func TestRunInvalidModule(t *testing.T) {
	result := Run([]byte("not wasm"), DefaultConfig())
	if result.Error == nil {
		t.Fatal("expected error")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.AllowedHosts != nil {
		t.Errorf("AllowedHosts = %v, want nil (unrestricted)", cfg.AllowedHosts)
	}
}
