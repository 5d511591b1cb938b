// Package metrics provides a caching factory for OpenTelemetry metric
// instruments with builder-style recording, plus the ledger's own metric
// definitions and helpers (applied/rejected actions, malformed rows, client
// gauges and run duration).
package metrics
