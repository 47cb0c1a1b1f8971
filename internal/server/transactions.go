package server

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ledgerd/ledgerd/internal/ledger"
	"github.com/ledgerd/ledgerd/internal/store"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txns, err := s.store.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, transactionResponseFrom(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var payload transactionPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := payload.validForCreate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var t ledger.Transaction
	if err := payload.applyTo(&t); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.store.CreateTransaction(r.Context(), t)
	if store.IsUniqueViolation(err) {
		writeError(w, http.StatusConflict, "occurrence already exists for this period")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	t.ID = id
	writeJSON(w, http.StatusCreated, transactionResponseFrom(t))
}

// handleUpdateTransaction replaces the fields present in the body and
// keeps the rest, mirroring the rule patch semantics.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := s.store.GetTransaction(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var payload transactionPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := payload.applyTo(&t); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.store.UpdateTransaction(r.Context(), t)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if store.IsUniqueViolation(err) {
		writeError(w, http.StatusConflict, "occurrence already exists for this period")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, transactionResponseFrom(t))
}

// handleDeleteTransaction removes a transaction. Deleting a generated
// one records its (rule, period) skip so the sweep cannot bring it
// back; the response says whether that happened.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	skipRecorded, err := s.store.DeleteTransaction(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		"deleted":       true,
		"skip_recorded": skipRecorded,
	})
}

func parseTransactionFilter(r *http.Request) (store.TransactionFilter, error) {
	query := r.URL.Query()
	var filter store.TransactionFilter

	if raw := strings.TrimSpace(query.Get("from_date")); raw != "" {
		from, err := ledger.ParseDate(raw)
		if err != nil {
			return store.TransactionFilter{}, errors.New("invalid from_date")
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(query.Get("to_date")); raw != "" {
		to, err := ledger.ParseDate(raw)
		if err != nil {
			return store.TransactionFilter{}, errors.New("invalid to_date")
		}
		filter.To = &to
	}
	if raw := query.Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return store.TransactionFilter{}, errors.New("invalid category_id")
		}
		filter.CategoryID = &id
	}
	if raw := query.Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return store.TransactionFilter{}, errors.New("invalid user_id")
		}
		filter.UserID = &id
	}
	return filter, nil
}
