package server

import (
	"net/http"
	"strings"

	"github.com/ledgerd/ledgerd/internal/ledger"
	"github.com/ledgerd/ledgerd/internal/store"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.ListCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name  string `json:"name"`
		Type  string `json:"type"`
		Color string `json:"color"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		writeError(w, http.StatusBadRequest, "name must not be empty")
		return
	}
	ctype := ledger.CategoryType(payload.Type)
	if payload.Type != "" && ctype != ledger.CategoryExpense && ctype != ledger.CategoryIncome {
		writeError(w, http.StatusBadRequest, "type must be expense or income")
		return
	}

	c := ledger.Category{Name: payload.Name, Type: ctype, Color: payload.Color}
	id, err := s.store.CreateCategory(r.Context(), c)
	if store.IsUniqueViolation(err) {
		writeError(w, http.StatusConflict, "category already exists")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	c.ID = id
	c.Name = ledger.NormalizeName(c.Name)
	if c.Type == "" {
		c.Type = ledger.CategoryExpense
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		writeError(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	a := ledger.Account{Name: payload.Name}
	id, err := s.store.CreateAccount(r.Context(), a)
	if store.IsUniqueViolation(err) {
		writeError(w, http.StatusConflict, "account already exists")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.ID = id
	a.Name = ledger.NormalizeName(a.Name)
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name   string `json:"name"`
		Active *bool  `json:"is_active"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		writeError(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	u := ledger.User{Name: payload.Name, Active: true}
	if payload.Active != nil {
		u.Active = *payload.Active
	}
	id, err := s.store.CreateUser(r.Context(), u)
	if store.IsUniqueViolation(err) {
		writeError(w, http.StatusConflict, "user already exists")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	u.ID = id
	u.Name = ledger.NormalizeName(u.Name)
	writeJSON(w, http.StatusCreated, u)
}
