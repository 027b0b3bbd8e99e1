// Package readiness tracks the process lifecycle state that liveness and
// readiness probes report on.
//
// The Store is an explicitly owned value, not a package global: construct one
// per process (or per test) and hand it to every component that needs to read
// or transition the state.
//
//	store := readiness.NewStore(readiness.Config{DrainTimeout: 30 * time.Second})
//	// ... startup work ...
//	store.Set(readiness.StateReady)
//
// Probes are pure reads. Readiness is healthy only in StateReady; liveness is
// healthy in every state until the drain timeout expires during shutdown.
package readiness
