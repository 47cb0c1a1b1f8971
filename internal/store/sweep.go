package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgerd/ledgerd/internal/ledger"
)

// Sweep is one generation run's database transaction. Rule reads,
// pre-checks, occurrence inserts, and the watermark advance all happen
// on it, so a crash mid-run leaves the watermark untouched and no
// partially generated window behind.
//
// Always defer Rollback after BeginSweep; it is a no-op once committed.
type Sweep struct {
	tx *sql.Tx
}

// BeginSweep starts the transaction for a generation run.
func (s *Store) BeginSweep(ctx context.Context) (*Sweep, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin sweep: %w", err)
	}
	return &Sweep{tx: tx}, nil
}

// Watermark returns the persisted generation watermark within the sweep.
// found is false when no run has ever recorded one.
func (w *Sweep) Watermark(ctx context.Context) (date time.Time, found bool, err error) {
	return watermark(ctx, w.tx)
}

// SetWatermark records the date through which this run attempted
// generation. Takes effect on Commit.
func (w *Sweep) SetWatermark(ctx context.Context, date time.Time) error {
	return setMeta(ctx, w.tx, watermarkKey, ledger.FormatDate(date))
}

// ActiveRules returns the rules the run must consider, ordered by id.
// Rules whose stored dates cannot be parsed come back separately so one
// corrupt row cannot block the whole run.
func (w *Sweep) ActiveRules(ctx context.Context) ([]ledger.Rule, []InvalidRule, error) {
	return listActiveRules(ctx, w.tx)
}

// HasOccurrence checks whether a transaction already exists for the
// (rule, period) pair.
func (w *Sweep) HasOccurrence(ctx context.Context, ruleID int64, periodKey string) (bool, error) {
	return hasOccurrence(ctx, w.tx, ruleID, periodKey)
}

// IsSkipped checks whether the (rule, period) pair was suppressed by a
// user deletion.
func (w *Sweep) IsSkipped(ctx context.Context, ruleID int64, periodKey string) (bool, error) {
	return isSkipped(ctx, w.tx, ruleID, periodKey)
}

// InsertOccurrence writes a generated transaction. Returns inserted=false
// when the (rule, period) slot is already taken - the unique index absorbs
// the conflict via ON CONFLICT DO NOTHING, so racing runs are benign.
// Other constraint violations (e.g. foreign keys) still return errors.
func (w *Sweep) InsertOccurrence(ctx context.Context, t ledger.Transaction) (inserted bool, err error) {
	res, err := w.tx.ExecContext(ctx,
		insertTransactionSQL+` ON CONFLICT(recurrence_id, period_key) DO NOTHING`,
		transactionArgs(t)...)
	if err != nil {
		return false, fmt.Errorf("insert occurrence: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert occurrence: rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// Commit makes the run's inserts and watermark advance durable.
func (w *Sweep) Commit() error {
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("commit sweep: %w", err)
	}
	return nil
}

// Rollback abandons the run. No-op after Commit.
func (w *Sweep) Rollback() error {
	err := w.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}
