package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"outgo/internal/core"
	"outgo/internal/export"
)

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	user, _ := currentUser(r)

	f, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := s.reportCacheKey(user.ID, f)
	summary, found := s.summaryCache.Get(key)
	if !found {
		summary, err = s.deps.Reports.Summary(r.Context(), user.ID, f)
		if err != nil {
			slog.ErrorContext(r.Context(), "Summary report failed", "user_id", user.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		s.summaryCache.Set(key, summary)
	}

	resp := map[string]any{
		"total":        core.FormatCents(summary.Total.Cents),
		"avg_daily":    core.FormatCents(summary.AvgDaily.Cents),
		"transactions": summary.Transactions,
	}
	if summary.TopCategory != nil {
		resp["top_category"] = map[string]any{
			"category": summary.TopCategory.Category,
			"amount":   core.FormatCents(summary.TopCategory.Amount.Cents),
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReportCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	user, _ := currentUser(r)

	f, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := s.reportCacheKey(user.ID, f)
	shares, found := s.categoryCache.Get(key)
	if !found {
		shares, err = s.deps.Reports.Categories(r.Context(), user.ID, f)
		if err != nil {
			slog.ErrorContext(r.Context(), "Category report failed", "user_id", user.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		s.categoryCache.Set(key, shares)
	}

	type shareJSON struct {
		Category string `json:"category"`
		Amount   string `json:"amount"`
		Width    int    `json:"width"`
	}
	out := make([]shareJSON, 0, len(shares))
	for _, sh := range shares {
		out = append(out, shareJSON{
			Category: sh.Category,
			Amount:   core.FormatCents(sh.Amount.Cents),
			Width:    sh.Width,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (s *Server) handleReportDaily(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	user, _ := currentUser(r)

	f, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := s.reportCacheKey(user.ID, f)
	totals, found := s.dailyCache.Get(key)
	if !found {
		totals, err = s.deps.Reports.Daily(r.Context(), user.ID, f)
		if err != nil {
			slog.ErrorContext(r.Context(), "Daily report failed", "user_id", user.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		s.dailyCache.Set(key, totals)
	}

	type dayJSON struct {
		Date   string `json:"date"`
		Amount string `json:"amount"`
	}
	out := make([]dayJSON, 0, len(totals))
	for _, t := range totals {
		out = append(out, dayJSON{Date: t.Date.String(), Amount: core.FormatCents(t.Amount.Cents)})
	}
	respondJSON(w, http.StatusOK, map[string]any{"daily": out})
}

func (s *Server) handleReportMonthly(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	user, _ := currentUser(r)

	f, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := s.reportCacheKey(user.ID, f)
	totals, found := s.monthlyCache.Get(key)
	if !found {
		totals, err = s.deps.Reports.Monthly(r.Context(), user.ID, f)
		if err != nil {
			slog.ErrorContext(r.Context(), "Monthly report failed", "user_id", user.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		s.monthlyCache.Set(key, totals)
	}

	type monthJSON struct {
		Month  string `json:"month"`
		Amount string `json:"amount"`
	}
	out := make([]monthJSON, 0, len(totals))
	for _, t := range totals {
		out = append(out, monthJSON{Month: string(t.Month), Amount: core.FormatCents(t.Amount.Cents)})
	}
	respondJSON(w, http.StatusOK, map[string]any{"monthly": out})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	user, _ := currentUser(r)

	f, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	expenses, err := s.deps.Expenses.List(r.Context(), user.ID, f)
	if err != nil {
		slog.ErrorContext(r.Context(), "Export list failed", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.Filename(user.Username, f)))
	if err := export.WriteCSV(w, expenses); err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed", "user_id", user.ID, "error", err)
	}
}
