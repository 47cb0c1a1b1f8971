package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerd/ledgerd/internal/ledger"
)

// SeedUser, SeedCategory, SeedAccount and SeedRule describe catalog rows
// to ensure exist. Rules reference their category, user and account by
// name so seed manifests stay readable and portable across databases.
type SeedUser struct {
	Name   string
	Active bool
}

type SeedCategory struct {
	Name  string
	Type  ledger.CategoryType
	Color string
}

type SeedAccount struct {
	Name string
}

type SeedRule struct {
	Name       string
	Amount     float64
	Category   string
	User       string
	Account    string
	Start      time.Time
	End        *time.Time
	Cadence    ledger.Cadence
	DayOfMonth int
	Weekday    *int
	Active     bool
}

// SeedData is a full seed payload.
type SeedData struct {
	Users      []SeedUser
	Categories []SeedCategory
	Accounts   []SeedAccount
	Rules      []SeedRule
}

// SeedResult reports how many rows ApplySeed actually created. Rows that
// already existed by name are counted as skipped, not errors.
type SeedResult struct {
	UsersCreated      int
	CategoriesCreated int
	AccountsCreated   int
	RulesCreated      int
	Skipped           int
}

// ApplySeed inserts the payload's rows, skipping any user, category,
// account or rule whose name already exists. Rules resolve their
// references by name against both pre-existing and freshly seeded rows.
// The whole payload applies in one transaction.
func (s *Store) ApplySeed(ctx context.Context, data SeedData) (SeedResult, error) {
	var res SeedResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, u := range data.Users {
		created, err := ensureRow(ctx, tx,
			`SELECT id FROM users WHERE name = ?`,
			`INSERT INTO users (name, is_active) VALUES (?, ?)`,
			ledger.NormalizeName(u.Name), boolToInt(u.Active))
		if err != nil {
			return res, fmt.Errorf("seed user %q: %w", u.Name, err)
		}
		if created {
			res.UsersCreated++
		} else {
			res.Skipped++
		}
	}

	for _, c := range data.Categories {
		created, err := ensureRow(ctx, tx,
			`SELECT id FROM categories WHERE name = ?`,
			`INSERT INTO categories (name, type, color) VALUES (?, ?, ?)`,
			ledger.NormalizeName(c.Name), string(c.Type), c.Color)
		if err != nil {
			return res, fmt.Errorf("seed category %q: %w", c.Name, err)
		}
		if created {
			res.CategoriesCreated++
		} else {
			res.Skipped++
		}
	}

	for _, a := range data.Accounts {
		created, err := ensureRow(ctx, tx,
			`SELECT id FROM accounts WHERE name = ?`,
			`INSERT INTO accounts (name) VALUES (?)`,
			ledger.NormalizeName(a.Name))
		if err != nil {
			return res, fmt.Errorf("seed account %q: %w", a.Name, err)
		}
		if created {
			res.AccountsCreated++
		} else {
			res.Skipped++
		}
	}

	for _, r := range data.Rules {
		created, err := seedRule(ctx, tx, r)
		if err != nil {
			return res, fmt.Errorf("seed rule %q: %w", r.Name, err)
		}
		if created {
			res.RulesCreated++
		} else {
			res.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit seed: %w", err)
	}

	return res, nil
}

// ensureRow inserts via insertSQL unless selectSQL already finds a row
// for the first argument (the name). Remaining args feed the insert.
func ensureRow(ctx context.Context, tx *sql.Tx, selectSQL, insertSQL string, name any, rest ...any) (bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx, selectSQL, name).Scan(&id)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	args := append([]any{name}, rest...)
	if _, err := tx.ExecContext(ctx, insertSQL, args...); err != nil {
		return false, err
	}
	return true, nil
}

func seedRule(ctx context.Context, tx *sql.Tx, r SeedRule) (bool, error) {
	var existing int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM recurrences WHERE name = ? LIMIT 1`,
		r.Name).Scan(&existing)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	categoryID, err := lookupID(ctx, tx, `SELECT id FROM categories WHERE name = ?`, r.Category)
	if err != nil {
		return false, fmt.Errorf("category %q: %w", r.Category, err)
	}
	userID, err := lookupID(ctx, tx, `SELECT id FROM users WHERE name = ?`, r.User)
	if err != nil {
		return false, fmt.Errorf("user %q: %w", r.User, err)
	}

	var accountID *int64
	if r.Account != "" {
		id, err := lookupID(ctx, tx, `SELECT id FROM accounts WHERE name = ?`, r.Account)
		if err != nil {
			return false, fmt.Errorf("account %q: %w", r.Account, err)
		}
		accountID = &id
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recurrences
		(name, amount, category_id, user_id, account_id, start_date, end_date, frequency, day_of_month, weekday, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.Name,
		r.Amount,
		categoryID,
		userID,
		nullInt64(accountID),
		ledger.FormatDate(r.Start),
		nullDate(r.End),
		string(r.Cadence),
		nullDayOfMonth(r.DayOfMonth),
		nullIntPtr(r.Weekday),
		boolToInt(r.Active),
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

// errUnknownName marks a rule reference that resolved to no catalog row.
var errUnknownName = errors.New("no such row")

func lookupID(ctx context.Context, tx *sql.Tx, query, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, query, ledger.NormalizeName(name)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errUnknownName
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// EnsureDefaults populates an empty catalog with a starter set of users,
// categories and accounts so a fresh database is immediately usable.
// Tables that already have rows are left alone. Returns whether anything
// was inserted.
func (s *Store) EnsureDefaults(ctx context.Context) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin defaults: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	seeded := false

	empty, err := tableEmpty(ctx, tx, "users")
	if err != nil {
		return false, err
	}
	if empty {
		for _, name := range []string{"Alice", "Bob"} {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO users (name, is_active) VALUES (?, 1)`, name); err != nil {
				return false, fmt.Errorf("default user %q: %w", name, err)
			}
		}
		seeded = true
	}

	empty, err = tableEmpty(ctx, tx, "categories")
	if err != nil {
		return false, err
	}
	if empty {
		defaults := []SeedCategory{
			{Name: "Food", Type: ledger.CategoryExpense, Color: "#F87171"},
			{Name: "Housing", Type: ledger.CategoryExpense, Color: "#60A5FA"},
			{Name: "Transport", Type: ledger.CategoryExpense, Color: "#FBBF24"},
			{Name: "Entertainment", Type: ledger.CategoryExpense, Color: "#34D399"},
			{Name: "Salary", Type: ledger.CategoryIncome, Color: "#A78BFA"},
		}
		for _, c := range defaults {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO categories (name, type, color) VALUES (?, ?, ?)`,
				c.Name, string(c.Type), c.Color); err != nil {
				return false, fmt.Errorf("default category %q: %w", c.Name, err)
			}
		}
		seeded = true
	}

	empty, err = tableEmpty(ctx, tx, "accounts")
	if err != nil {
		return false, err
	}
	if empty {
		for _, name := range []string{"Cash", "Credit Card"} {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO accounts (name) VALUES (?)`, name); err != nil {
				return false, fmt.Errorf("default account %q: %w", name, err)
			}
		}
		seeded = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit defaults: %w", err)
	}

	return seeded, nil
}

func tableEmpty(ctx context.Context, tx *sql.Tx, table string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return false, fmt.Errorf("count %s: %w", table, err)
	}
	return n == 0, nil
}
