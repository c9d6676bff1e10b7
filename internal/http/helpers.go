package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"outgo/internal/core"
)

const maxBodyBytes = 1 << 20 // 1 MiB

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a size-limited JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// parseFilter reads start, end and categories query parameters.
func parseFilter(r *http.Request) (core.Filter, error) {
	var f core.Filter

	if v := r.URL.Query().Get("start"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Filter{}, fmt.Errorf("invalid start date %q", v)
		}
		f.Start = d
	}
	if v := r.URL.Query().Get("end"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Filter{}, fmt.Errorf("invalid end date %q", v)
		}
		f.End = d
	}
	if v := r.URL.Query().Get("categories"); v != "" {
		for _, c := range splitAndTrim(v) {
			f.Categories = append(f.Categories, c)
		}
	}

	if err := f.Validate(); err != nil {
		return core.Filter{}, err
	}
	return f, nil
}

func splitAndTrim(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			part := sanitizeInput(s[start:i])
			if part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}

// parseBudgetCents parses a budget amount. Unlike expense amounts, a
// budget of zero is valid and disables alerts for the month.
func parseBudgetCents(s string) (int64, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err == nil {
		return cents, nil
	}
	trimmed := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if f, ferr := strconv.ParseFloat(trimmed, 64); ferr == nil && f == 0 && !strings.HasPrefix(trimmed, "-") {
		return 0, nil
	}
	return 0, err
}

// parseMonth reads the month query parameter, defaulting to the current month.
func parseMonth(r *http.Request, fallback core.MonthKey) (core.MonthKey, error) {
	v := r.URL.Query().Get("month")
	if v == "" {
		return fallback, nil
	}
	month, err := core.ParseMonthKey(v)
	if err != nil {
		return "", errors.New("invalid month, expected YYYY-MM")
	}
	return month, nil
}

// expenseJSON is the wire shape of an expense.
type expenseJSON struct {
	ID       int64  `json:"id"`
	Date     string `json:"date"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Note     string `json:"note,omitempty"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:       e.ID,
		Date:     e.Date.String(),
		Category: e.Category,
		Amount:   core.FormatCents(e.Amount.Cents),
		Note:     e.Note,
	}
}

// budgetStatusJSON is the wire shape of a month's budget status.
type budgetStatusJSON struct {
	Month     string  `json:"month"`
	HasBudget bool    `json:"has_budget"`
	Budget    string  `json:"budget"`
	Spent     string  `json:"spent"`
	Ratio     float64 `json:"ratio"`
	Level     string  `json:"level"`
}

func toBudgetStatusJSON(st core.BudgetStatus) budgetStatusJSON {
	return budgetStatusJSON{
		Month:     string(st.Month),
		HasBudget: st.HasBudget,
		Budget:    core.FormatCents(st.Budget.Cents),
		Spent:     core.FormatCents(st.Spent.Cents),
		Ratio:     st.Ratio,
		Level:     st.Level,
	}
}
