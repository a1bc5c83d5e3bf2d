package ferry

import (
	"context"
	"time"

	"github.com/ferryhq/ferry/bridge"
	"github.com/ferryhq/ferry/engine"
	"github.com/ferryhq/ferry/fetch"
)

// Result is the outcome of a guest run.
type Result = engine.Result

// Config bounds a one-call guest run.
type Config struct {
	Timeout      time.Duration
	AllowedHosts []string
	MaxBodySize  int64
	Args         []string
	Env          map[string]string
}

func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
	}
}

// Run executes a guest on a throwaway runtime and returns its output.
// Stored responses the guest never read are dropped when the run
// finishes. Processes that run guests repeatedly should hold an
// [engine.Engine] instead of paying for a runtime per call.
func Run(wasm []byte, cfg Config) Result {
	start := time.Now()

	b := bridge.New(bridge.WithFetchConfig(fetch.Config{
		AllowedHosts: cfg.AllowedHosts,
		MaxBodySize:  cfg.MaxBodySize,
	}))
	defer b.Shutdown()

	eng, err := engine.New(b)
	if err != nil {
		return Result{Error: err, Duration: time.Since(start)}
	}
	defer eng.Close()

	runOpts := []engine.RunOption{
		engine.WithTimeout(cfg.Timeout),
		engine.WithArgs(cfg.Args...),
	}
	for k, v := range cfg.Env {
		runOpts = append(runOpts, engine.WithEnv(k, v))
	}

	return eng.Run(context.Background(), wasm, runOpts...)
}
