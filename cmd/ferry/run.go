package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ferryhq/ferry/bridge"
	"github.com/ferryhq/ferry/config"
	"github.com/ferryhq/ferry/engine"
	"github.com/ferryhq/ferry/fetch"
	"github.com/ferryhq/ferry/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run module.wasm [-- guest args]",
	Short: "Run a WASM guest to completion",
	Long: `Execute a WASI command module with the ferry host functions imported.

The guest's _start runs to completion; its stdout and stderr are
printed when it finishes. Everything after the module path is passed
to the guest as arguments.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", 30*time.Second, "Execution timeout")
	cmd.Flags().StringSlice("allow-host", nil, "Allow HTTP to host (repeatable)")
	cmd.Flags().Int64("max-body", 0, "Max HTTP response body size (0 = no cap)")
	cmd.Flags().String("memory", "", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
	cmd.Flags().StringSlice("env", nil, "Guest environment KEY=VALUE (repeatable)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on host:port while running")
}

// applyRunFlags lets explicit flags override the config file.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("allow-host") {
		hosts, _ := cmd.Flags().GetStringSlice("allow-host")
		cfg.HTTP.AllowedHosts = hosts
	}
	if cmd.Flags().Changed("max-body") {
		maxBody, _ := cmd.Flags().GetInt64("max-body")
		cfg.HTTP.MaxBodyBytes = maxBody
	}
	if cmd.Flags().Changed("metrics-addr") {
		addr, _ := cmd.Flags().GetString("metrics-addr")
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = addr
	}
	if noCache, _ := cmd.Root().PersistentFlags().GetBool("no-cache"); noCache {
		cfg.Engine.DiskCache = false
	}
	if cmd.Flags().Changed("memory") {
		mem, _ := cmd.Flags().GetString("memory")
		if pages := parseMemoryLimit(mem); pages > 0 {
			cfg.Engine.MemoryLimitPages = pages
		}
	}
}

func fetchConfig(cfg *config.Config, logger *slog.Logger) fetch.Config {
	return fetch.Config{
		AllowedHosts:      cfg.HTTP.AllowedHosts,
		MaxBodySize:       cfg.HTTP.MaxBodyBytes,
		MaxURLLength:      cfg.HTTP.MaxURLLength,
		RootCAFile:        cfg.HTTP.RootCAFile,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Logger:            logger,
	}
}

func parseEnv(specs []string) (map[string]string, error) {
	env := make(map[string]string, len(specs))
	for _, spec := range specs {
		k, v, ok := strings.Cut(spec, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid env spec %q (expected KEY=VALUE)", spec)
		}
		env[k] = v
	}
	return env, nil
}

func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	logger.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}

func runRun(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		cmd.Help()
		return
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyRunFlags(cmd, cfg)

	logger := buildLogger(cfg.Log)

	wasm, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	envSpecs, _ := cmd.Flags().GetStringSlice("env")
	env, err := parseEnv(envSpecs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	bridgeOpts := []bridge.Option{
		bridge.WithLogger(logger),
		bridge.WithFetchConfig(fetchConfig(cfg, logger)),
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		bridgeOpts = append(bridgeOpts, bridge.WithMetrics(m))
	}

	b := bridge.New(bridgeOpts...)
	defer b.Shutdown()

	engOpts := []engine.Option{engine.WithLogger(logger)}
	if cfg.Engine.DiskCache {
		engOpts = append(engOpts, engine.WithDiskCache(cfg.Engine.CacheDir))
	}
	if cfg.Engine.MemoryLimitPages > 0 {
		engOpts = append(engOpts, engine.WithMemoryLimit(cfg.Engine.MemoryLimitPages))
	}

	eng, err := engine.New(b, engOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	if m != nil {
		go serveMetrics(cfg.Metrics.Addr, m, logger)
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")

	runOpts := []engine.RunOption{
		engine.WithTimeout(timeout),
		engine.WithArgs(append([]string{filepath.Base(args[0])}, args[1:]...)...),
	}
	for k, v := range env {
		runOpts = append(runOpts, engine.WithEnv(k, v))
	}

	result := eng.Run(context.Background(), wasm, runOpts...)

	fmt.Print(result.Output)

	if result.Error != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", result.Error)
		os.Exit(1)
	}
}
