// Package linkcheck defines the types and interfaces shared by the link
// probing pipeline: probe outcomes, persisted records, and the contracts of
// the prober, result store, overflow sink and checkpoint.
package linkcheck
