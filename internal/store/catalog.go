package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ledgerd/ledgerd/internal/ledger"
)

// ListCategories returns all categories ordered by id.
func (s *Store) ListCategories(ctx context.Context) ([]ledger.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, type, color FROM categories ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var cats []ledger.Category
	for rows.Next() {
		var c ledger.Category
		var ctype string
		var color sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &ctype, &color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = ledger.CategoryType(ctype)
		c.Color = color.String
		cats = append(cats, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	if cats == nil {
		cats = []ledger.Category{}
	}

	return cats, nil
}

// CreateCategory inserts a category and returns its id. The name is
// normalized before storage; a duplicate name fails the UNIQUE index
// (detectable with IsUniqueViolation).
func (s *Store) CreateCategory(ctx context.Context, c ledger.Category) (int64, error) {
	if c.Type == "" {
		c.Type = ledger.CategoryExpense
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (name, type, color) VALUES (?, ?, ?)
	`, ledger.NormalizeName(c.Name), string(c.Type), nullString(c.Color))
	if err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create category: last insert id: %w", err)
	}
	return id, nil
}

// ListAccounts returns all accounts ordered by id.
func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM accounts ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accts []ledger.Account
	for rows.Next() {
		var a ledger.Account
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accts = append(accts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	if accts == nil {
		accts = []ledger.Account{}
	}

	return accts, nil
}

// CreateAccount inserts an account and returns its id. The name is
// normalized before storage.
func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO accounts (name) VALUES (?)`,
		ledger.NormalizeName(a.Name))
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create account: last insert id: %w", err)
	}
	return id, nil
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]ledger.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, is_active FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []ledger.User
	for rows.Next() {
		var u ledger.User
		var active int
		if err := rows.Scan(&u.ID, &u.Name, &active); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Active = active != 0
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	if users == nil {
		users = []ledger.User{}
	}

	return users, nil
}

// CreateUser inserts a user and returns its id.
func (s *Store) CreateUser(ctx context.Context, u ledger.User) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (name, is_active) VALUES (?, ?)`,
		ledger.NormalizeName(u.Name), boolToInt(u.Active))
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create user: last insert id: %w", err)
	}
	return id, nil
}
