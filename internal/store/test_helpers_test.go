package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ledgerd/ledgerd/internal/ledger"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCatalog inserts one user, one category and one account and
// returns their ids for rules and transactions to reference.
func createTestCatalog(t *testing.T, s *Store) (userID, categoryID, accountID int64) {
	t.Helper()
	ctx := context.Background()

	userID, err := s.CreateUser(ctx, ledger.User{Name: "Alice", Active: true})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	categoryID, err = s.CreateCategory(ctx, ledger.Category{Name: "Rent", Type: ledger.CategoryExpense, Color: "#60A5FA"})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	accountID, err = s.CreateAccount(ctx, ledger.Account{Name: "Cash"})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return userID, categoryID, accountID
}

// createTestRule builds an active monthly rule with minimal required fields.
func createTestRule(categoryID, userID int64, start time.Time) ledger.Rule {
	return ledger.Rule{
		Name:       "Rent",
		Amount:     1200,
		CategoryID: categoryID,
		UserID:     userID,
		Start:      start,
		Cadence:    ledger.CadenceMonthly,
		DayOfMonth: 1,
		Active:     true,
	}
}

// createTestTransaction builds a generated transaction tied to a rule and period.
func createTestTransaction(categoryID, userID, ruleID int64, date time.Time, periodKey string) ledger.Transaction {
	return ledger.Transaction{
		Date:       date,
		Amount:     -1200,
		CategoryID: categoryID,
		UserID:     userID,
		RuleID:     &ruleID,
		PeriodKey:  periodKey,
	}
}

// mustDate parses a YYYY-MM-DD date or fails the test.
func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := ledger.ParseDate(value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return d
}
