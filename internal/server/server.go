// Package server exposes the ledger over a JSON API: transactions,
// recurrence rules, the catalog tables and the on-demand generation
// trigger. Handlers speak a wire vocabulary with plain "2006-01-02"
// date strings and translate to the domain types at the boundary.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ledgerd/ledgerd/internal/engine"
	"github.com/ledgerd/ledgerd/internal/ledger"
	"github.com/ledgerd/ledgerd/internal/store"
)

// Server owns the HTTP surface over one store and one engine.
type Server struct {
	store  *store.Store
	engine *engine.Engine
	clock  engine.Clock
	log    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides the wall clock used for "today" in next-charge
// math and default occurrence dates. Tests pin it.
func WithClock(c engine.Clock) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// New builds a Server over the given store and engine. A nil logger
// falls back to slog.Default().
func New(st *store.Store, eng *engine.Engine, log *slog.Logger, opts ...Option) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		store:  st,
		engine: eng,
		clock:  engine.SystemClock{},
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the full route table wrapped in request-id, logging
// and panic-recovery middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/system/apply-recurring", s.handleApplyRecurring)

	mux.HandleFunc("GET /api/recurrences", s.handleListRules)
	mux.HandleFunc("POST /api/recurrences", s.handleCreateRule)
	mux.HandleFunc("GET /api/recurrences/{id}", s.handleGetRule)
	mux.HandleFunc("PATCH /api/recurrences/{id}", s.handleUpdateRule)
	mux.HandleFunc("DELETE /api/recurrences/{id}", s.handleDeleteRule)
	mux.HandleFunc("POST /api/recurrences/{id}/apply-once", s.handleApplyOnce)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/users", s.handleListUsers)
	mux.HandleFunc("POST /api/users", s.handleCreateUser)

	return s.withRequestID(s.withLogging(s.withRecovery(mux)))
}

// today is the calendar day handlers reason about.
func (s *Server) today() time.Time {
	return ledger.DateOf(s.clock.Now())
}
