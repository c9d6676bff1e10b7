package core

// Budget alert levels, compared against the spent/budget ratio.
const (
	BudgetOK    = "ok"
	BudgetWarn  = "warn"  // ratio >= 0.9
	BudgetAlert = "alert" // ratio >= 1.0
)

type (
	CategoryTotal struct {
		Category string
		Amount   Money
	}

	// CategoryShare extends a category total with a rounded percentage of
	// the largest category, used by clients to scale chart bars.
	CategoryShare struct {
		Category string
		Amount   Money
		Width    int
	}

	DailyTotal struct {
		Date   Date
		Amount Money
	}

	MonthlyTotal struct {
		Month  MonthKey
		Amount Money
	}

	// PeriodSummary aggregates a filtered expense window.
	PeriodSummary struct {
		Total        Money
		AvgDaily     Money
		Transactions int
		TopCategory  *CategoryTotal
	}

	// BudgetStatus is the result of comparing a month's spending against
	// its budget.
	BudgetStatus struct {
		Month     MonthKey
		HasBudget bool
		Budget    Money
		Spent     Money
		Ratio     float64
		Level     string
	}
)

// EvaluateBudget computes the status for a month. A missing or zero budget
// yields ratio 0 and level ok, so no alert ever fires without a budget.
func EvaluateBudget(month MonthKey, hasBudget bool, budgetCents, spentCents int64) BudgetStatus {
	st := BudgetStatus{
		Month:     month,
		HasBudget: hasBudget,
		Budget:    Money{Cents: budgetCents},
		Spent:     Money{Cents: spentCents},
		Level:     BudgetOK,
	}
	if !hasBudget || budgetCents <= 0 {
		return st
	}
	st.Ratio = float64(spentCents) / float64(budgetCents)
	switch {
	case st.Ratio >= 1.0:
		st.Level = BudgetAlert
	case st.Ratio >= 0.9:
		st.Level = BudgetWarn
	}
	return st
}

// CategoryShares computes chart widths relative to the largest category:
// rounded percent of the maximum, floored at 2 for visibility, capped at 100.
func CategoryShares(totals []CategoryTotal) []CategoryShare {
	var maxCents int64
	for _, t := range totals {
		if t.Amount.Cents > maxCents {
			maxCents = t.Amount.Cents
		}
	}
	shares := make([]CategoryShare, 0, len(totals))
	for _, t := range totals {
		width := 0
		if maxCents > 0 && t.Amount.Cents > 0 {
			width = int((t.Amount.Cents*100 + maxCents/2) / maxCents)
			if width > 0 && width < 2 {
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		shares = append(shares, CategoryShare{Category: t.Category, Amount: t.Amount, Width: width})
	}
	return shares
}
