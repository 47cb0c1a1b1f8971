package server

import (
	"database/sql"
	"errors"
	"math"
	"net/http"

	"github.com/ledgerd/ledgerd/internal/ledger"
	"github.com/ledgerd/ledgerd/internal/store"
)

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	today := s.today()
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, ruleResponseFrom(rule, today))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var payload rulePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := payload.validForCreate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule := ledger.Rule{Active: true}
	if err := payload.applyTo(&rule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.store.CreateRule(r.Context(), rule)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rule.ID = id
	writeJSON(w, http.StatusCreated, ruleResponseFrom(rule, s.today()))
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := s.store.GetRule(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "recurrence not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ruleResponseFrom(rule, s.today()))
}

// handleUpdateRule patches a rule: fields present in the body replace
// the stored ones, everything else keeps its value.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := s.store.GetRule(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "recurrence not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var payload rulePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := payload.applyTo(&rule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.UpdateRule(r.Context(), rule); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "recurrence not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ruleResponseFrom(rule, s.today()))
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.store.DeleteRule(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "recurrence not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// handleApplyOnce inserts one occurrence for the rule immediately. The
// period key is the due date itself, so repeating the call for the same
// date conflicts, while the sweep's own month/week/year keys stay free.
func (s *Server) handleApplyOnce(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := s.store.GetRule(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "recurrence not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var payload applyOncePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	due := s.today()
	if payload.Date != nil {
		due, err = ledger.ParseDate(*payload.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
	}
	amount := -math.Abs(rule.Amount)
	if payload.Amount != nil {
		amount = *payload.Amount
	}
	notes := ""
	if payload.Notes != nil {
		notes = *payload.Notes
	}

	key := ledger.FormatDate(due)
	skipped, err := s.store.IsSkipped(r.Context(), id, key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if skipped {
		writeError(w, http.StatusConflict, "occurrence for this date was deleted and is skipped")
		return
	}

	txID, err := s.store.CreateTransaction(r.Context(), ledger.Transaction{
		Date:       due,
		Amount:     amount,
		CategoryID: rule.CategoryID,
		UserID:     rule.UserID,
		AccountID:  rule.AccountID,
		Notes:      notes,
		RuleID:     &rule.ID,
		PeriodKey:  key,
	})
	if store.IsUniqueViolation(err) {
		writeError(w, http.StatusConflict, "occurrence already exists for this date")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"inserted":       true,
		"transaction_id": txID,
	})
}
