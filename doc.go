// Package ferry hosts WebAssembly guests that make HTTP requests
// through a two-phase boundary protocol.
//
// # Overview
//
// Guests never see Go values. They import functions from the "ferry"
// namespace, issue a request, learn the exact response size, then
// drain the body into memory they allocated themselves. Every
// operation reports a status code; the message behind a failure waits
// in a per-guest error slot until the next operation replaces it.
//
// # Basic Usage
//
//	result := ferry.Run(wasmBytes, ferry.DefaultConfig())
//	fmt.Println(result.Output)
//
// # Long-Lived Hosts
//
// The one-call form builds a throwaway runtime. Processes that run
// many guests hold the pieces directly:
//
//	b := bridge.New(bridge.WithFetchConfig(fetch.Config{
//	    AllowedHosts: []string{"api.example.com"},
//	}))
//	eng, _ := engine.New(b, engine.WithDiskCache())
//	defer eng.Close()
//	defer b.Shutdown()
//
//	result := eng.Run(ctx, wasmBytes)
//
// # Restricting Capabilities
//
// By default guests may request any host. Pass an allowlist and body
// limits to fence them in:
//
//	cfg := ferry.DefaultConfig()
//	cfg.AllowedHosts = []string{"api.example.com"}
//	cfg.MaxBodySize = 1 << 20
//	result := ferry.Run(wasmBytes, cfg)
//
// The bridge, engine, fetch, store, and hostabi packages document the
// pieces individually.
package ferry
