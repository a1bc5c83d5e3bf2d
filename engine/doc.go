// Package engine runs WebAssembly guests with the ferry host module
// and WASI available as imports.
//
// # Overview
//
// The engine manages guest compilation, caching, and execution. It
// supports one-shot runs (a WASI command module's _start) and
// long-lived instances whose exported functions are called from the
// host.
//
// # Basic Usage
//
//	b := bridge.New()
//	eng, err := engine.New(b)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
//	result := eng.Run(ctx, wasmBytes, engine.WithTimeout(10*time.Second))
//	fmt.Println(result.Output)
//
// # Instances
//
// Instances stay resident so the host can call into them repeatedly:
//
//	inst, err := eng.Instantiate(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close()
//
//	results, err := inst.Call(ctx, "handle", 42)
//
// # Guest Imports
//
// Every guest sees two import namespaces: wasi_snapshot_preview1 for
// the usual system interface, and ferry for the HTTP boundary
// functions documented in [github.com/ferryhq/ferry/hostabi]. Each
// guest is instantiated under a distinct module name, which keys its
// error slot on the host side.
package engine
