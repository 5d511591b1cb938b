// Package ledger holds the process-level plumbing shared by the ledger
// packages: environment-driven configuration and the context carrying the
// logger, metrics factory and run id.
//
// The transaction engine itself lives in package transaction.
package ledger
