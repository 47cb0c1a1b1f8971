// Package ledger provides the core domain types for ledgerd.
//
// This package contains type definitions and small pure helpers only.
// All other internal packages import ledger; ledger imports nothing
// internal. This keeps the domain model the foundational layer with
// no circular dependencies.
//
// Conventions:
//   - Dates are calendar days: time.Time at midnight UTC, wire format "2006-01-02"
//   - Weekdays are numbered Monday=0 .. Sunday=6
//   - Rule amounts are stored as positive magnitudes; sign is applied at
//     generation time
//   - All JSON tags use snake_case
package ledger
