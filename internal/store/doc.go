// Package store provides SQLite-backed durable storage for the ledger.
//
// One database holds everything:
//   - Catalog: users, categories, accounts
//   - Recurrences: recurring-charge rules (read, never mutated, by the sweep)
//   - Transactions: ordinary and generated ledger entries
//   - Skips: (rule, period) pairs suppressed by the deletion path
//   - Meta: the generation watermark
//
// # Idempotency
//
// Generated transactions are keyed by (recurrence_id, period_key) under a
// UNIQUE index. Occurrence inserts use ON CONFLICT DO NOTHING with a
// rows-affected check, so a repeated or racing generation run degrades to
// a no-op instead of an error. The sweep additionally pre-checks existence
// and skip records before inserting.
//
// # Transactions
//
// A generation run executes inside a single database transaction obtained
// from BeginSweep: rule reads, pre-checks, occurrence inserts, and the
// watermark advance commit or roll back together. Deleting a generated
// entry and recording its skip likewise share one transaction.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Schema changes are applied through PRAGMA user_version migrations in
// store.go.
package store
