package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/ferryhq/ferry/bridge"
	"github.com/ferryhq/ferry/store"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCLIHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedPhrases := []string{
		"ferry",
		"WASM",
		"host functions",
		"run",
		"repl",
	}

	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("help output should contain %q", phrase)
		}
	}
}

func TestCLIRunHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "run", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, flag := range []string{"--allow-host", "--timeout", "--max-body", "--metrics-addr", "--env"} {
		if !strings.Contains(output, flag) {
			t.Errorf("run help should mention %s", flag)
		}
	}
}

func TestCLIReplHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "repl", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, phrase := range []string{"read <handle>", "free <handle>", "shutdown", "--history"} {
		if !strings.Contains(output, phrase) {
			t.Errorf("repl help should mention %q", phrase)
		}
	}
}

func TestParseMemoryLimit(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"1mb", 16},
		{"16MB", 256},
		{"64mb", 1024},
		{"256mb", 4096},
		{"1gb", 16384},
		{"", 0},
		{"banana", 0},
	}

	for _, tc := range tests {
		if got := parseMemoryLimit(tc.in); got != tc.want {
			t.Errorf("parseMemoryLimit(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseEnv(t *testing.T) {
	env, err := parseEnv([]string{"A=1", "B=two=2"})
	if err != nil {
		t.Fatalf("parseEnv: %v", err)
	}
	if env["A"] != "1" || env["B"] != "two=2" {
		t.Errorf("env = %v", env)
	}

	if _, err := parseEnv([]string{"NOVALUE"}); err == nil {
		t.Error("expected error for spec without =")
	}
	if _, err := parseEnv([]string{"=x"}); err == nil {
		t.Error("expected error for empty key")
	}
}

func newReplSession(out *bytes.Buffer) *replSession {
	b := bridge.New()
	return &replSession{
		bridge: b,
		caller: b.NewCaller(),
		lens:   make(map[store.Handle]int32),
		out:    out,
	}
}

func TestReplProtocolRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			if got := r.Header.Get("X-Tag"); got != "repl" {
				t.Errorf("X-Tag = %q", got)
			}
		}
		w.Write([]byte("pong!"))
	}))
	defer server.Close()

	var out bytes.Buffer
	s := newReplSession(&out)

	s.dispatch("get " + server.URL)
	if got := out.String(); !strings.Contains(got, "handle=1 status=200 len=5") {
		t.Fatalf("get output = %q", got)
	}

	out.Reset()
	s.dispatch("read 1")
	if got := out.String(); got != "pong!\n" {
		t.Errorf("read output = %q", got)
	}

	// Consumed: reading again reports an invalid handle.
	out.Reset()
	s.dispatch("read 1 16")
	if got := out.String(); !strings.Contains(got, "invalid handle") {
		t.Errorf("second read output = %q", got)
	}

	out.Reset()
	s.dispatch(`headers {"X-Tag": "repl"}`)
	s.dispatch("post " + server.URL + " some body text")
	if got := out.String(); !strings.Contains(got, "status=200") {
		t.Errorf("post output = %q", got)
	}

	out.Reset()
	s.dispatch("pending")
	if got := strings.TrimSpace(out.String()); got != "1" {
		t.Errorf("pending = %q, want 1", got)
	}

	out.Reset()
	s.dispatch("shutdown")
	s.dispatch("pending")
	if !strings.Contains(out.String(), "store cleared") || !strings.HasSuffix(strings.TrimSpace(out.String()), "0") {
		t.Errorf("shutdown output = %q", out.String())
	}
}

func TestReplSmallBufferThenRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("a longer body"))
	}))
	defer server.Close()

	var out bytes.Buffer
	s := newReplSession(&out)

	s.dispatch("get " + server.URL)
	out.Reset()

	s.dispatch("read 1 4")
	if got := out.String(); !strings.Contains(got, "buffer too small") {
		t.Fatalf("small read output = %q", got)
	}

	// The handle survived; a right-sized read drains it.
	out.Reset()
	s.dispatch("read 1 13")
	if got := out.String(); got != "a longer body\n" {
		t.Errorf("retry output = %q", got)
	}
}

func TestReplErrCommand(t *testing.T) {
	var out bytes.Buffer
	s := newReplSession(&out)

	s.dispatch("err")
	if got := out.String(); !strings.Contains(got, "(no error)") {
		t.Errorf("err output = %q", got)
	}

	out.Reset()
	s.dispatch("free 42")
	s.dispatch("err")
	if got := out.String(); !strings.Contains(got, "already discarded or never issued") {
		t.Errorf("err after bad free = %q", got)
	}
}

func TestReplBadInput(t *testing.T) {
	var out bytes.Buffer
	s := newReplSession(&out)

	s.dispatch("launch")
	if !strings.Contains(out.String(), "unknown command") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	s.dispatch("read nope")
	if !strings.Contains(out.String(), "bad handle") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	s.dispatch("read 7")
	if !strings.Contains(out.String(), "unknown") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	s.dispatch("timeout fast")
	if !strings.Contains(out.String(), "bad timeout") {
		t.Errorf("output = %q", out.String())
	}
}
