package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgerd/ledgerd/internal/ledger"
)

// TransactionFilter narrows ListTransactions. Nil fields match everything.
type TransactionFilter struct {
	From       *time.Time
	To         *time.Time
	CategoryID *int64
	UserID     *int64
}

const transactionColumns = `id, date, amount, category_id, user_id, account_id,
		notes, tags, recurrence_id, period_key`

// ListTransactions returns transactions matching the filter,
// newest first (ORDER BY date DESC, id DESC).
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListTransactions(ctx context.Context, f TransactionFilter) ([]ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	var args []any
	if f.From != nil {
		query += " AND date >= ?"
		args = append(args, ledger.FormatDate(*f.From))
	}
	if f.To != nil {
		query += " AND date <= ?"
		args = append(args, ledger.FormatDate(*f.To))
	}
	if f.CategoryID != nil {
		query += " AND category_id = ?"
		args = append(args, *f.CategoryID)
	}
	if f.UserID != nil {
		query += " AND user_id = ?"
		args = append(args, *f.UserID)
	}
	query += " ORDER BY date DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	if txns == nil {
		txns = []ledger.Transaction{}
	}

	return txns, nil
}

// GetTransaction retrieves a single transaction by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetTransaction(ctx context.Context, id int64) (ledger.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	return scanTransactionRow(row)
}

// CreateTransaction inserts a transaction and returns its id.
func (s *Store) CreateTransaction(ctx context.Context, t ledger.Transaction) (int64, error) {
	res, err := s.db.ExecContext(ctx, insertTransactionSQL, transactionArgs(t)...)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create transaction: last insert id: %w", err)
	}
	return id, nil
}

// UpdateTransaction replaces a transaction row by t.ID.
// Returns sql.ErrNoRows if the transaction does not exist.
func (s *Store) UpdateTransaction(ctx context.Context, t ledger.Transaction) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET date = ?, amount = ?, category_id = ?, user_id = ?, account_id = ?,
		    notes = ?, tags = ?, recurrence_id = ?, period_key = ?
		WHERE id = ?
	`, append(transactionArgs(t), t.ID)...)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction %d: rows affected: %w", t.ID, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteTransaction removes a transaction. If the row was generated from
// a rule, its (rule, period) skip is recorded in the same database
// transaction so a later generation sweep cannot resurrect it.
//
// Returns whether a skip was recorded, and sql.ErrNoRows if the
// transaction does not exist.
func (s *Store) DeleteTransaction(ctx context.Context, id int64) (skipRecorded bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("delete transaction: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	row := tx.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransactionRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, sql.ErrNoRows
		}
		return false, fmt.Errorf("delete transaction %d: %w", id, err)
	}

	if t.Generated() {
		// INSERT OR IGNORE: deleting twice, or deleting after a manual
		// skip, must not fail.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recurrence_skips (recurrence_id, period_key)
			VALUES (?, ?)
			ON CONFLICT(recurrence_id, period_key) DO NOTHING
		`, *t.RuleID, t.PeriodKey); err != nil {
			return false, fmt.Errorf("delete transaction %d: record skip: %w", id, err)
		}
		skipRecorded = true
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("delete transaction %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("delete transaction %d: commit: %w", id, err)
	}

	return skipRecorded, nil
}

// HasOccurrence checks whether a generated transaction exists for the
// given (rule, period) pair.
func (s *Store) HasOccurrence(ctx context.Context, ruleID int64, periodKey string) (bool, error) {
	return hasOccurrence(ctx, s.db, ruleID, periodKey)
}

func hasOccurrence(ctx context.Context, q querier, ruleID int64, periodKey string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM transactions
		WHERE recurrence_id = ? AND period_key = ?
		LIMIT 1
	`, ruleID, periodKey).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check occurrence: %w", err)
	}
	return true, nil
}

const insertTransactionSQL = `
	INSERT INTO transactions
	(date, amount, category_id, user_id, account_id, notes, tags, recurrence_id, period_key)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func transactionArgs(t ledger.Transaction) []any {
	return []any{
		ledger.FormatDate(t.Date),
		t.Amount,
		t.CategoryID,
		t.UserID,
		nullInt64(t.AccountID),
		nullString(t.Notes),
		nullString(t.Tags),
		nullInt64(t.RuleID),
		nullString(t.PeriodKey),
	}
}

// scanTransaction scans a row into a ledger.Transaction.
func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var t ledger.Transaction
	var dateStr string
	var accountID, ruleID sql.NullInt64
	var notes, tags, periodKey sql.NullString

	if err := rows.Scan(
		&t.ID, &dateStr, &t.Amount, &t.CategoryID, &t.UserID, &accountID,
		&notes, &tags, &ruleID, &periodKey,
	); err != nil {
		return ledger.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	if err := fillTransaction(&t, dateStr, accountID, notes, tags, ruleID, periodKey); err != nil {
		return ledger.Transaction{}, err
	}
	return t, nil
}

// scanTransactionRow scans a single row into a ledger.Transaction.
func scanTransactionRow(row *sql.Row) (ledger.Transaction, error) {
	var t ledger.Transaction
	var dateStr string
	var accountID, ruleID sql.NullInt64
	var notes, tags, periodKey sql.NullString

	if err := row.Scan(
		&t.ID, &dateStr, &t.Amount, &t.CategoryID, &t.UserID, &accountID,
		&notes, &tags, &ruleID, &periodKey,
	); err != nil {
		return ledger.Transaction{}, err
	}

	if err := fillTransaction(&t, dateStr, accountID, notes, tags, ruleID, periodKey); err != nil {
		return ledger.Transaction{}, err
	}
	return t, nil
}

func fillTransaction(
	t *ledger.Transaction,
	dateStr string,
	accountID sql.NullInt64,
	notes, tags sql.NullString,
	ruleID sql.NullInt64,
	periodKey sql.NullString,
) error {
	date, err := ledger.ParseDate(dateStr)
	if err != nil {
		return fmt.Errorf("transaction %d: %w", t.ID, err)
	}
	t.Date = date

	if accountID.Valid {
		v := accountID.Int64
		t.AccountID = &v
	}
	t.Notes = notes.String
	t.Tags = tags.String
	if ruleID.Valid {
		v := ruleID.Int64
		t.RuleID = &v
	}
	t.PeriodKey = periodKey.String
	return nil
}

// nullString stores "" as NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
