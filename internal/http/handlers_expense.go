package http

import (
	"errors"
	"log/slog"
	"net/http"

	"outgo/internal/core"
	"outgo/internal/storage"
)

type expenseRequest struct {
	ID       int64  `json:"id,omitempty"`
	Date     string `json:"date"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Note     string `json:"note,omitempty"`
}

// toExpense validates and converts the request into a domain expense.
func (req expenseRequest) toExpense() (core.Expense, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Expense{}, err
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{
		ID:       req.ID,
		Date:     date,
		Category: sanitizeInput(req.Category),
		Amount:   core.Money{Cents: cents},
		Note:     sanitizeInput(req.Note),
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListExpenses(w, r)
	case http.MethodPost:
		s.handleCreateExpense(w, r)
	case http.MethodPut:
		s.handleUpdateExpense(w, r)
	case http.MethodDelete:
		s.handleDeleteExpense(w, r)
	default:
		methodNotAllowed(w, "GET, POST, PUT, DELETE")
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	f, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	expenses, err := s.deps.Expenses.List(r.Context(), user.ID, f)
	if err != nil {
		slog.ErrorContext(r.Context(), "Expense list failed", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]expenseJSON, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseJSON(e))
	}
	respondJSON(w, http.StatusOK, map[string]any{"expenses": out})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := req.toExpense()
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	id, status, err := s.deps.Expenses.Create(r.Context(), user, e)
	if err != nil {
		slog.ErrorContext(r.Context(), "Expense creation failed", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.invalidateReports(user.ID)

	respondJSON(w, http.StatusCreated, map[string]any{
		"id":            id,
		"budget_status": toBudgetStatusJSON(status),
	})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID <= 0 {
		respondError(w, http.StatusUnprocessableEntity, "missing expense id")
		return
	}

	e, err := req.toExpense()
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	status, err := s.deps.Expenses.Update(r.Context(), user, e)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "expense not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Expense update failed",
			"user_id", user.ID, "expense_id", req.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.invalidateReports(user.ID)

	respondJSON(w, http.StatusOK, map[string]any{
		"id":            e.ID,
		"budget_status": toBudgetStatusJSON(status),
	})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req struct {
		ID int64 `json:"id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID <= 0 {
		respondError(w, http.StatusUnprocessableEntity, "missing expense id")
		return
	}

	err := s.deps.Expenses.Delete(r.Context(), user.ID, req.ID)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "expense not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Expense deletion failed",
			"user_id", user.ID, "expense_id", req.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.invalidateReports(user.ID)
	w.WriteHeader(http.StatusNoContent)
}
