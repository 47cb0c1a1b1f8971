package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerd/ledgerd/internal/ledger"
)

// InvalidRule identifies a stored rule whose date fields could not be
// parsed. Such rows are reported alongside the valid rules so one bad
// row cannot block a whole generation run.
type InvalidRule struct {
	ID   int64
	Name string
	Err  error
}

const ruleColumns = `id, name, amount, category_id, user_id, account_id,
		start_date, end_date, frequency, day_of_month, weekday, active`

// ListRules returns all recurrence rules ordered by id.
// Returns an empty slice (not nil) if no rules exist.
func (s *Store) ListRules(ctx context.Context) ([]ledger.Rule, error) {
	return listRules(ctx, s.db, `SELECT `+ruleColumns+` FROM recurrences ORDER BY id ASC`)
}

// ListActiveRules returns the rules considered by the generation sweep,
// ordered by id for deterministic processing. Rules with unparseable
// dates are returned separately instead of failing the query.
func (s *Store) ListActiveRules(ctx context.Context) ([]ledger.Rule, []InvalidRule, error) {
	return listActiveRules(ctx, s.db)
}

// GetRule retrieves a single rule by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetRule(ctx context.Context, id int64) (ledger.Rule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM recurrences WHERE id = ?`, id)
	return scanRuleRow(row)
}

// CreateRule inserts a rule and returns its id.
func (s *Store) CreateRule(ctx context.Context, r ledger.Rule) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO recurrences
		(name, amount, category_id, user_id, account_id, start_date, end_date, frequency, day_of_month, weekday, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.Name,
		r.Amount,
		r.CategoryID,
		r.UserID,
		nullInt64(r.AccountID),
		ledger.FormatDate(r.Start),
		nullDate(r.End),
		string(r.Cadence),
		nullDayOfMonth(r.DayOfMonth),
		nullIntPtr(r.Weekday),
		boolToInt(r.Active),
	)
	if err != nil {
		return 0, fmt.Errorf("create rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create rule: last insert id: %w", err)
	}
	return id, nil
}

// UpdateRule replaces a rule row by r.ID.
// Returns sql.ErrNoRows if the rule does not exist.
func (s *Store) UpdateRule(ctx context.Context, r ledger.Rule) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE recurrences
		SET name = ?, amount = ?, category_id = ?, user_id = ?, account_id = ?,
		    start_date = ?, end_date = ?, frequency = ?, day_of_month = ?, weekday = ?, active = ?
		WHERE id = ?
	`,
		r.Name,
		r.Amount,
		r.CategoryID,
		r.UserID,
		nullInt64(r.AccountID),
		ledger.FormatDate(r.Start),
		nullDate(r.End),
		string(r.Cadence),
		nullDayOfMonth(r.DayOfMonth),
		nullIntPtr(r.Weekday),
		boolToInt(r.Active),
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("update rule %d: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rule %d: rows affected: %w", r.ID, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteRule removes a rule. Skips cascade away with it; generated
// transactions survive with their rule reference cleared (ON DELETE SET NULL).
// Returns sql.ErrNoRows if the rule does not exist.
func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recurrences WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx so rule reads can run
// inside or outside a sweep transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func listRules(ctx context.Context, q querier, query string, args ...any) ([]ledger.Rule, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var rules []ledger.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}

	// Return empty slice instead of nil
	if rules == nil {
		rules = []ledger.Rule{}
	}

	return rules, nil
}

func listActiveRules(ctx context.Context, q querier) ([]ledger.Rule, []InvalidRule, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM recurrences
		WHERE active = 1
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("query active rules: %w", err)
	}
	defer rows.Close()

	var rules []ledger.Rule
	var invalid []InvalidRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			var bad *badDateError
			if errors.As(err, &bad) {
				invalid = append(invalid, InvalidRule{ID: bad.id, Name: bad.name, Err: bad.err})
				continue
			}
			return nil, nil, err
		}
		rules = append(rules, r)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate active rules: %w", err)
	}

	if rules == nil {
		rules = []ledger.Rule{}
	}

	return rules, invalid, nil
}

// badDateError carries enough row identity to report a rule that failed
// date parsing without aborting the surrounding scan loop.
type badDateError struct {
	id   int64
	name string
	err  error
}

func (e *badDateError) Error() string {
	return fmt.Sprintf("rule %d (%s): %v", e.id, e.name, e.err)
}

func (e *badDateError) Unwrap() error { return e.err }

// scanRule scans a row into a ledger.Rule.
func scanRule(rows *sql.Rows) (ledger.Rule, error) {
	var r ledger.Rule
	var accountID, dayOfMonth, weekday sql.NullInt64
	var startStr string
	var endStr sql.NullString
	var cadence string
	var active int

	if err := rows.Scan(
		&r.ID, &r.Name, &r.Amount, &r.CategoryID, &r.UserID, &accountID,
		&startStr, &endStr, &cadence, &dayOfMonth, &weekday, &active,
	); err != nil {
		return ledger.Rule{}, fmt.Errorf("scan rule: %w", err)
	}

	if err := fillRuleDates(&r, startStr, endStr); err != nil {
		return ledger.Rule{}, &badDateError{id: r.ID, name: r.Name, err: err}
	}

	fillRuleRest(&r, accountID, cadence, dayOfMonth, weekday, active)
	return r, nil
}

// scanRuleRow scans a single row into a ledger.Rule.
func scanRuleRow(row *sql.Row) (ledger.Rule, error) {
	var r ledger.Rule
	var accountID, dayOfMonth, weekday sql.NullInt64
	var startStr string
	var endStr sql.NullString
	var cadence string
	var active int

	if err := row.Scan(
		&r.ID, &r.Name, &r.Amount, &r.CategoryID, &r.UserID, &accountID,
		&startStr, &endStr, &cadence, &dayOfMonth, &weekday, &active,
	); err != nil {
		return ledger.Rule{}, err
	}

	if err := fillRuleDates(&r, startStr, endStr); err != nil {
		return ledger.Rule{}, fmt.Errorf("rule %d: %w", r.ID, err)
	}

	fillRuleRest(&r, accountID, cadence, dayOfMonth, weekday, active)
	return r, nil
}

func fillRuleDates(r *ledger.Rule, startStr string, endStr sql.NullString) error {
	start, err := ledger.ParseDate(startStr)
	if err != nil {
		return err
	}
	r.Start = start

	if endStr.Valid && endStr.String != "" {
		end, err := ledger.ParseDate(endStr.String)
		if err != nil {
			return err
		}
		r.End = &end
	}
	return nil
}

func fillRuleRest(r *ledger.Rule, accountID sql.NullInt64, cadence string, dayOfMonth, weekday sql.NullInt64, active int) {
	if accountID.Valid {
		v := accountID.Int64
		r.AccountID = &v
	}
	r.Cadence = ledger.Cadence(cadence)
	if dayOfMonth.Valid {
		r.DayOfMonth = int(dayOfMonth.Int64)
	}
	if weekday.Valid {
		v := int(weekday.Int64)
		r.Weekday = &v
	}
	r.Active = active != 0
}

// nullInt64 converts *int64 to a driver-friendly value.
func nullInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// nullIntPtr converts *int to a driver-friendly value.
func nullIntPtr(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// nullDayOfMonth stores 0 (unset) as NULL.
func nullDayOfMonth(d int) any {
	if d == 0 {
		return nil
	}
	return d
}

// nullDate formats an optional date, storing nil as NULL.
func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ledger.FormatDate(*t)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
