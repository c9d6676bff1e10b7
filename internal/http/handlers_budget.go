package http

import (
	"log/slog"
	"net/http"
	"time"

	"outgo/internal/core"
)

func currentMonth() core.MonthKey {
	return core.MonthKeyOf(core.Date{Time: time.Now()})
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetBudget(w, r)
	case http.MethodPut:
		s.handleSetBudget(w, r)
	default:
		methodNotAllowed(w, "GET, PUT")
	}
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	month, err := parseMonth(r, currentMonth())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	budget, ok, err := s.deps.Budgets.Get(r.Context(), user.ID, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Budget lookup failed",
			"user_id", user.ID, "month", month, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := map[string]any{"month": string(month)}
	if ok {
		resp["amount"] = core.FormatCents(budget.Amount.Cents)
	} else {
		resp["amount"] = nil
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req struct {
		Month  string `json:"month"`
		Amount string `json:"amount"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	month, err := core.ParseMonthKey(req.Month)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid month, expected YYYY-MM")
		return
	}

	cents, err := parseBudgetCents(req.Amount)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}
	amount := core.Money{Cents: cents}

	if err := s.deps.Budgets.Set(r.Context(), user.ID, month, amount); err != nil {
		slog.ErrorContext(r.Context(), "Budget set failed",
			"user_id", user.ID, "month", month, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.invalidateReports(user.ID)

	status, err := s.deps.Budgets.Status(r.Context(), user.ID, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Budget status after set failed",
			"user_id", user.ID, "month", month, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, toBudgetStatusJSON(status))
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	user, _ := currentUser(r)

	month, err := parseMonth(r, currentMonth())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := s.deps.Budgets.Status(r.Context(), user.ID, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Budget status failed",
			"user_id", user.ID, "month", month, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, toBudgetStatusJSON(status))
}
