// Package checker holds the network probes behind a posture scan.
//
// Architecture overview:
//
//   - NormalizeDomain turns raw input into the bare hostname every probe
//     resolves against.
//   - PortProbe, TLSProbe, DNSPolicyProbe and HTTPAuditProbe each own their
//     connections and timeouts and return a typed Outcome (success, failure or
//     timeout). Transport errors never escape a probe.
//   - IdentifyPlatform is a pure fingerprint matcher fed by the HTTP audit.
//   - Runner paces batches of targets for the CLI; the scan orchestrator in
//     internal/application/scan does not use it.
//
// Probes are plain config structs with no mutable state, so a single value
// can serve any number of concurrent scans.
package checker
