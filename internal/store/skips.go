package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ledgerd/ledgerd/internal/ledger"
)

// IsSkipped checks whether a (rule, period) occurrence was suppressed by
// a user deletion. The generation sweep consults this before inserting.
func (s *Store) IsSkipped(ctx context.Context, ruleID int64, periodKey string) (bool, error) {
	return isSkipped(ctx, s.db, ruleID, periodKey)
}

func isSkipped(ctx context.Context, q querier, ruleID int64, periodKey string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM recurrence_skips
		WHERE recurrence_id = ? AND period_key = ?
	`, ruleID, periodKey).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check skip: %w", err)
	}
	return true, nil
}

// ListSkips returns all skips recorded for a rule, ordered by period key.
// Returns an empty slice (not nil) if the rule has none.
func (s *Store) ListSkips(ctx context.Context, ruleID int64) ([]ledger.Skip, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT recurrence_id, period_key FROM recurrence_skips
		WHERE recurrence_id = ?
		ORDER BY period_key ASC
	`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("query skips: %w", err)
	}
	defer rows.Close()

	var skips []ledger.Skip
	for rows.Next() {
		var sk ledger.Skip
		if err := rows.Scan(&sk.RuleID, &sk.PeriodKey); err != nil {
			return nil, fmt.Errorf("scan skip: %w", err)
		}
		skips = append(skips, sk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate skips: %w", err)
	}

	if skips == nil {
		skips = []ledger.Skip{}
	}

	return skips, nil
}
