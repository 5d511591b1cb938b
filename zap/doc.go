// Package zap adapts go.uber.org/zap to the ledger's log.Logger interface.
//
// New builds the process logger from Config; entries are tee'd into the
// OpenTelemetry log bridge and carry trace/span ids when the context holds a span.
package zap
