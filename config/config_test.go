package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
[http]
allowed_hosts = ["api.example.com", "cdn.example.com"]
max_body_bytes = 5242880
max_url_length = 2048
timeout_seconds = 15
requests_per_second = 2.5

[engine]
disk_cache = true
cache_dir = "/tmp/ferry-cache"
memory_limit_pages = 1024

[log]
level = "debug"
format = "json"

[metrics]
enabled = true
addr = "127.0.0.1:9100"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.HTTP.AllowedHosts) != 2 || cfg.HTTP.AllowedHosts[0] != "api.example.com" {
		t.Errorf("HTTP.AllowedHosts = %v", cfg.HTTP.AllowedHosts)
	}
	if cfg.HTTP.MaxBodyBytes != 5242880 {
		t.Errorf("HTTP.MaxBodyBytes = %d", cfg.HTTP.MaxBodyBytes)
	}
	if cfg.HTTP.RequestsPerSecond != 2.5 {
		t.Errorf("HTTP.RequestsPerSecond = %v", cfg.HTTP.RequestsPerSecond)
	}
	if !cfg.Engine.DiskCache || cfg.Engine.CacheDir != "/tmp/ferry-cache" {
		t.Errorf("Engine = %+v", cfg.Engine)
	}
	if cfg.Engine.MemoryLimitPages != 1024 {
		t.Errorf("Engine.MemoryLimitPages = %d", cfg.Engine.MemoryLimitPages)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "127.0.0.1:9100" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_EmptyFileGetsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTP.MaxURLLength != 8192 {
		t.Errorf("MaxURLLength = %d, want 8192", cfg.HTTP.MaxURLLength)
	}
	if cfg.HTTP.MaxBodyBytes != 0 {
		t.Errorf("MaxBodyBytes = %d, want 0 (no cap)", cfg.HTTP.MaxBodyBytes)
	}
	if len(cfg.HTTP.AllowedHosts) != 0 {
		t.Errorf("AllowedHosts = %v, want empty", cfg.HTTP.AllowedHosts)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Metrics.Addr != "127.0.0.1:9090" {
		t.Errorf("Metrics.Addr = %q", cfg.Metrics.Addr)
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics enabled by default")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil || !strings.Contains(err.Error(), "read") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_MalformedTOML(t *testing.T) {
	_, err := Load(writeConfig(t, "[http\nbroken"))
	if err == nil || !strings.Contains(err.Error(), "parse") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{
			name: "negative body cap",
			data: "[http]\nmax_body_bytes = -1",
			want: "max_body_bytes",
		},
		{
			name: "negative url length",
			data: "[http]\nmax_url_length = -10",
			want: "max_url_length",
		},
		{
			name: "negative timeout",
			data: "[http]\ntimeout_seconds = -5",
			want: "timeout_seconds",
		},
		{
			name: "negative rate",
			data: "[http]\nrequests_per_second = -0.5",
			want: "requests_per_second",
		},
		{
			name: "bad log level",
			data: "[log]\nlevel = \"verbose\"",
			want: "log.level",
		},
		{
			name: "bad log format",
			data: "[log]\nformat = \"xml\"",
			want: "log.format",
		},
		{
			name: "bad metrics addr",
			data: "[metrics]\nenabled = true\naddr = \"no-port\"",
			want: "metrics.addr",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.data))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestLoad_MetricsAddrNotValidatedWhenDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[metrics]\naddr = \"no-port\""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Metrics.Addr != "no-port" {
		t.Errorf("Metrics.Addr = %q", cfg.Metrics.Addr)
	}
}

func TestFindConfigInPaths(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.toml")
	if err := os.WriteFile(present, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	got := findConfigInPaths([]string{
		filepath.Join(dir, "missing.toml"),
		present,
	})
	if got != present {
		t.Errorf("findConfigInPaths = %q, want %q", got, present)
	}

	if got := findConfigInPaths([]string{filepath.Join(dir, "missing.toml")}); got != "" {
		t.Errorf("findConfigInPaths = %q, want empty", got)
	}
}
