// Package log defines the logging interface used across the ledger, typed
// fields, a no-op logger and a small standard-library backend.
//
// The zap package provides the production adapter.
package log
