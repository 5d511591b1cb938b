// Package transaction implements the ledger engine for client account actions.
//
// Core flow:
//   - Engine.Apply validates and applies one AccountAction (deposit, withdrawal,
//     dispute, resolve, chargeback) against the transaction and client tables.
//   - Engine.Clients returns a sorted, read-only snapshot of client balances.
//
// Every rejection is a typed DomainError and leaves the engine state untouched.
// The engine is not safe for concurrent use; callers apply actions one at a time.
package transaction
