// Package fingerprint derives a per-device identifier that is sent alongside
// dashboard credentials as an extra verification signal.
//
// A Generator first asks a Collector (a third-party entropy source) for an
// identifier. When the collector is missing, fails, or runs past its timeout,
// the Generator falls back to a deterministic hash over a handful of
// environment signals. Generate never fails.
//
// The two sources produce unrelated identifiers: a device yields a different
// string from each path, and they should not be compared with each other.
package fingerprint
