// Package engine implements the recurring-transaction generation sweep.
//
// The engine is the heart of ledgerd - given the active recurrence rules
// and the watermark of the last run, it materializes every transaction
// the rules owe up to "today" and advances the watermark.
//
// ARCHITECTURE:
//
// Serialized Atomic Runs:
// Each run takes the engine mutex and executes inside one database
// transaction. This ensures:
//   - Concurrent triggers (API call racing the startup sweep) cannot
//     interleave their writes
//   - A crash mid-run leaves the watermark untouched, so the next run
//     regenerates the same window
//   - The unique (rule, period) index absorbs any run racing from
//     another process as benign no-ops
//
// Run Flow:
//  1. Resolve the watermark (absent on first run, clamped if ahead of today)
//  2. For each active rule, intersect [watermark, today] with the rule's
//     own lifetime
//  3. Enumerate the due (period key, date) pairs for the rule's cadence
//  4. Insert each pair that is not already present and not skipped
//  5. Advance the watermark to today and commit
//
// Rules with unusable stored data are logged and left out of the run;
// one corrupt row never blocks generation for the rest.
//
// The engine is designed for correctness over throughput. Runs are rare
// (startup, the daily trigger, manual invocation) and windows are small
// once the watermark is established.
//
// Period keys are "2006-01" for monthly rules, "2006-W01" (ISO week) for
// weekly rules and "2006" for yearly rules. A key names the period, the
// due date places the charge inside it.
package engine
