package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledgerd/ledgerd/internal/ledger"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Create database
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s1.Close()

	// Reopen database
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	// Verify we can query it
	var count int
	err = s2.db.QueryRow("SELECT COUNT(*) FROM transactions").Scan(&count)
	if err != nil {
		t.Errorf("query failed: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Open multiple times
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	// Final open should work
	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	// Verify schema is intact
	tables := []string{"users", "categories", "accounts", "recurrences", "transactions", "recurrence_skips", "meta"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	// Try to open in non-existent directory
	path := "/nonexistent/dir/test.db"

	_, err := Open(path)
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	err := s.Close()
	if err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	// First close should succeed
	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}

	// Second close should not panic (though may error)
	_ = s.Close()
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := createTestStore(t)

	db := s.DB()
	if db == nil {
		t.Error("DB() returned nil")
	}

	// Verify it's usable
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)

	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestPragma_ForeignKeys(t *testing.T) {
	s := createTestStore(t)

	// ON = 1
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

// Schema table tests

func TestSchema_RecurrencesTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "recurrences")

	expected := []string{
		"id", "name", "amount", "category_id", "user_id", "account_id",
		"start_date", "end_date", "frequency", "day_of_month", "weekday", "active",
	}

	for _, col := range expected {
		if !contains(columns, col) {
			t.Errorf("recurrences table missing column %q", col)
		}
	}
}

func TestSchema_TransactionsTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "transactions")

	expected := []string{
		"id", "date", "amount", "category_id", "user_id", "account_id",
		"notes", "tags", "recurrence_id", "period_key",
	}

	for _, col := range expected {
		if !contains(columns, col) {
			t.Errorf("transactions table missing column %q", col)
		}
	}
}

func TestSchema_RecurrenceSkipsTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "recurrence_skips")

	expected := []string{"recurrence_id", "period_key"}

	for _, col := range expected {
		if !contains(columns, col) {
			t.Errorf("recurrence_skips table missing column %q", col)
		}
	}
}

func TestSchema_TransactionsIndexes(t *testing.T) {
	s := createTestStore(t)

	indexes := getTableIndexes(t, s.db, "transactions")

	expected := []string{
		"uniq_rec_period",
		"idx_transactions_date",
	}

	for _, idx := range expected {
		if !contains(indexes, idx) {
			t.Errorf("transactions table missing index %q", idx)
		}
	}
}

// Constraint tests

func TestConstraint_OccurrenceSlotUnique(t *testing.T) {
	// Each (rule, period) pair admits exactly one generated transaction.
	// The engine's idempotency depends on this index.
	s := createTestStore(t)
	ctx := context.Background()
	userID, categoryID, _ := createTestCatalog(t, s)

	ruleID, err := s.CreateRule(ctx, createTestRule(categoryID, userID, mustDate(t, "2024-01-01")))
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	first := createTestTransaction(categoryID, userID, ruleID, mustDate(t, "2024-01-01"), "2024-01")
	if _, err := s.CreateTransaction(ctx, first); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	dup := createTestTransaction(categoryID, userID, ruleID, mustDate(t, "2024-01-15"), "2024-01")
	_, err = s.CreateTransaction(ctx, dup)
	if err == nil {
		t.Fatal("expected UNIQUE constraint violation, got nil")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}
}

func TestConstraint_ManualTransactionsUnconstrained(t *testing.T) {
	// Rows without a rule reference carry NULL (recurrence_id, period_key)
	// and must never collide with each other.
	s := createTestStore(t)
	ctx := context.Background()
	userID, categoryID, _ := createTestCatalog(t, s)

	for i := 0; i < 3; i++ {
		tx := createTestTransaction(categoryID, userID, 0, mustDate(t, "2024-01-05"), "")
		tx.RuleID = nil
		if _, err := s.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("manual insert %d failed: %v", i, err)
		}
	}
}

func TestConstraint_ForeignKeyTransactionCategory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	userID, _, _ := createTestCatalog(t, s)

	tx := createTestTransaction(9999, userID, 0, mustDate(t, "2024-01-05"), "")
	tx.RuleID = nil
	_, err := s.CreateTransaction(ctx, tx)
	if err == nil {
		t.Error("expected foreign key constraint violation, got nil")
	}
}

func TestConstraint_RuleDeleteClearsTransactionReference(t *testing.T) {
	// Deleting a rule keeps its generated history with the reference
	// nulled (ON DELETE SET NULL) and cascades away its skip records.
	s := createTestStore(t)
	ctx := context.Background()
	userID, categoryID, _ := createTestCatalog(t, s)

	ruleID, err := s.CreateRule(ctx, createTestRule(categoryID, userID, mustDate(t, "2024-01-01")))
	if err != nil {
		t.Fatalf("CreateRule failed: %v", err)
	}

	txID, err := s.CreateTransaction(ctx, createTestTransaction(categoryID, userID, ruleID, mustDate(t, "2024-01-01"), "2024-01"))
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	_, err = s.db.Exec(`INSERT INTO recurrence_skips (recurrence_id, period_key) VALUES (?, ?)`, ruleID, "2024-02")
	if err != nil {
		t.Fatalf("insert skip failed: %v", err)
	}

	if err := s.DeleteRule(ctx, ruleID); err != nil {
		t.Fatalf("DeleteRule failed: %v", err)
	}

	got, err := s.GetTransaction(ctx, txID)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if got.RuleID != nil {
		t.Errorf("RuleID = %v, want nil after rule delete", *got.RuleID)
	}

	var skipCount int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM recurrence_skips WHERE recurrence_id = ?`, ruleID).Scan(&skipCount); err != nil {
		t.Fatalf("count skips failed: %v", err)
	}
	if skipCount != 0 {
		t.Errorf("skip count = %d, want 0 after cascade", skipCount)
	}
}

func TestConstraint_CategoryNameUnique(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateCategory(ctx, ledger.Category{Name: "Food", Type: ledger.CategoryExpense}); err != nil {
		t.Fatalf("first CreateCategory failed: %v", err)
	}

	_, err := s.CreateCategory(ctx, ledger.Category{Name: "Food", Type: ledger.CategoryExpense})
	if err == nil {
		t.Fatal("expected UNIQUE constraint violation, got nil")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}
}

// Migration tests

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}

	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_IdempotentUpgrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Open and close multiple times - migrations should be idempotent
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}

		var version int
		err = s.db.QueryRow("PRAGMA user_version").Scan(&version)
		if err != nil {
			t.Fatalf("failed to get user_version: %v", err)
		}

		if version != currentSchemaVersion {
			t.Errorf("iteration %d: user_version = %d, want %d", i, version, currentSchemaVersion)
		}

		s.Close()
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	// Simulate a pre-migration database (version 0)
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	// Apply schema but NOT migrations (simulates pre-migration state)
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	if _, err := db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	// Now open through our normal path - should trigger migration
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	var version int
	err = s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}

	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d after migration", version, currentSchemaVersion)
	}

	// Verify the migration's artifacts exist
	var name string
	err = s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='recurrence_skips'").Scan(&name)
	if err != nil {
		t.Errorf("recurrence_skips table missing after migration: %v", err)
	}

	indexes := getTableIndexes(t, s.db, "transactions")
	if !contains(indexes, "uniq_rec_period") {
		t.Errorf("transactions table missing uniq_rec_period after migration, indexes: %v", indexes)
	}
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
