package fetch

import (
	"context"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeServerCA(t *testing.T, server *httptest.Server) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ca.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw})
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRootCAFileEnablesTLSVerification(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secure"))
	}))
	defer server.Close()

	c := New(Config{RootCAFile: writeServerCA(t, server)})
	resp, err := c.Do(context.Background(), Request{Method: "GET", URL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "secure" {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestTLSUntrustedRootIsRequestFailure(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	c := New(Config{})
	_, err := c.Do(context.Background(), Request{Method: "GET", URL: server.URL})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("got %v, want ErrRequestFailed", err)
	}
}

func TestClientInitFailureIsRetried(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	caPath := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(caPath, []byte("not a certificate"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(Config{RootCAFile: caPath})

	// A bad CA file fails init on every attempt, without caching the
	// failure.
	for i := 0; i < 2; i++ {
		if _, err := c.Do(context.Background(), Request{Method: "GET", URL: server.URL}); !errors.Is(err, ErrClientInit) {
			t.Fatalf("attempt %d: got %v, want ErrClientInit", i, err)
		}
	}

	// Fix the CA file in place; the same Client must now initialize.
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw})
	if err := os.WriteFile(caPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	resp, err := c.Do(context.Background(), Request{Method: "GET", URL: server.URL})
	if err != nil {
		t.Fatalf("after fixing CA: %v", err)
	}
	if string(resp.Body) != "recovered" {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestClientBuiltOnceOnSuccess(t *testing.T) {
	c := New(Config{})

	first, err := c.client()
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	second, err := c.client()
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if first != second {
		t.Error("shared client rebuilt after successful init")
	}
}
