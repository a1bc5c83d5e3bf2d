package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ferryhq/ferry/config"
	"github.com/ferryhq/ferry/engine"
)

var rootCmd = &cobra.Command{
	Use:   "ferry [module.wasm]",
	Short: "HTTP boundary host for WebAssembly guests",
	Long: `ferry - Run WASM guests that talk to the network through host functions.

Guests import HTTP operations from the "ferry" namespace: issue a
request, learn the response size, then drain the body into their own
memory. Outbound traffic is restricted with --allow-host and bounded
by the limits in the config file.`,
	Args: cobra.ArbitraryArgs,
	Run:  runRun, // Default to run command behavior
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to TOML config file")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")

	addRunFlags(rootCmd)
}

// loadConfig resolves the --config flag and loads the TOML file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	return config.Load(path)
}

// buildLogger constructs the process logger from the [log] section.
func buildLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		h = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(h)
}

func parseMemoryLimit(s string) uint32 {
	switch strings.ToLower(s) {
	case "1mb":
		return engine.MemoryLimit1MB
	case "16mb":
		return engine.MemoryLimit16MB
	case "64mb":
		return engine.MemoryLimit64MB
	case "256mb":
		return engine.MemoryLimit256MB
	case "1gb":
		return engine.MemoryLimit1GB
	default:
		return 0 // use default
	}
}
