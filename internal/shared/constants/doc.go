// Package constants centralizes defaults shared across the CLI and the probes.
//
// Probe timeouts, the TLS expiry warning window and HTTP audit limits live in
// one place so cmd/, internal/checker and internal/api agree on them without
// introducing import cycles.
package constants
