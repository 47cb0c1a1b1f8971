package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerd/ledgerd/internal/engine"
	"github.com/ledgerd/ledgerd/internal/ledger"
	"github.com/ledgerd/ledgerd/internal/store"
	"github.com/ledgerd/ledgerd/internal/testutil"
)

// fixture wires a server over a temp database with one category and
// one user pre-created, its clock pinned to a chosen day.
type fixture struct {
	store   *store.Store
	clock   *testutil.FixedClock
	handler http.Handler

	catID  int64
	userID int64
}

func newFixture(t *testing.T, today time.Time) *fixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	catID, err := st.CreateCategory(ctx, ledger.Category{
		Name: "Housing", Type: ledger.CategoryExpense, Color: "#60A5FA",
	})
	require.NoError(t, err)
	userID, err := st.CreateUser(ctx, ledger.User{Name: "Alice", Active: true})
	require.NoError(t, err)

	clock := testutil.NewFixedClock(today)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(st, engine.UUIDv7Generator{}, engine.WithClock(clock))
	srv := New(st, eng, log, WithClock(clock))

	return &fixture{
		store:   st,
		clock:   clock,
		handler: srv.Handler(),
		catID:   catID,
		userID:  userID,
	}
}

// do performs one request against the in-memory handler.
func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst),
		"body: %s", rec.Body.String())
}

// addRule creates a rule directly in the store, defaulting the catalog
// references to the fixture's rows.
func (f *fixture) addRule(t *testing.T, r ledger.Rule) int64 {
	t.Helper()
	if r.CategoryID == 0 {
		r.CategoryID = f.catID
	}
	if r.UserID == 0 {
		r.UserID = f.userID
	}
	id, err := f.store.CreateRule(context.Background(), r)
	require.NoError(t, err)
	return id
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestApplyRecurringEndpoint(t *testing.T) {
	f := newFixture(t, date(2024, 3, 15))
	f.addRule(t, ledger.Rule{
		Name:       "Rent",
		Amount:     1200,
		Start:      date(2024, 1, 1),
		Cadence:    ledger.CadenceMonthly,
		DayOfMonth: 31,
		Active:     true,
	})

	rec := f.do(t, http.MethodPost, "/api/system/apply-recurring", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	decodeBody(t, rec, &resp)
	assert.Equal(t, float64(3), resp["inserted"])
	assert.Equal(t, "ok", resp["status"])

	// Second trigger finds everything already generated
	rec = f.do(t, http.MethodPost, "/api/system/apply-recurring", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Equal(t, float64(0), resp["inserted"])
}

func TestRequestIDHeader(t *testing.T) {
	f := newFixture(t, date(2024, 3, 15))

	rec := f.do(t, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, date(2024, 3, 15))

	rec := f.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
