package core

import "testing"

func TestEvaluateBudget(t *testing.T) {
	tests := []struct {
		name      string
		hasBudget bool
		budget    int64
		spent     int64
		wantLevel string
	}{
		{"no budget", false, 0, 50000, BudgetOK},
		{"zero budget", true, 0, 50000, BudgetOK},
		{"under", true, 10000, 5000, BudgetOK},
		{"just under warn", true, 10000, 8999, BudgetOK},
		{"warn threshold", true, 10000, 9000, BudgetWarn},
		{"between warn and alert", true, 10000, 9500, BudgetWarn},
		{"alert threshold", true, 10000, 10000, BudgetAlert},
		{"exceeded", true, 10000, 15000, BudgetAlert},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := EvaluateBudget("2025-03", tt.hasBudget, tt.budget, tt.spent)
			if st.Level != tt.wantLevel {
				t.Errorf("level = %q, want %q (ratio %f)", st.Level, tt.wantLevel, st.Ratio)
			}
			if (!tt.hasBudget || tt.budget == 0) && st.Ratio != 0 {
				t.Errorf("ratio = %f, want 0 without usable budget", st.Ratio)
			}
		})
	}
}

func TestCategoryShares(t *testing.T) {
	totals := []CategoryTotal{
		{Category: "Rent", Amount: Money{Cents: 100000}},
		{Category: "Food", Amount: Money{Cents: 50000}},
		{Category: "Misc", Amount: Money{Cents: 500}},
		{Category: "Zero", Amount: Money{Cents: 0}},
	}
	shares := CategoryShares(totals)
	if len(shares) != 4 {
		t.Fatalf("len = %d", len(shares))
	}
	if shares[0].Width != 100 {
		t.Errorf("max category width = %d, want 100", shares[0].Width)
	}
	if shares[1].Width != 50 {
		t.Errorf("half category width = %d, want 50", shares[1].Width)
	}
	if shares[2].Width != 2 {
		t.Errorf("tiny category width = %d, want minimum 2", shares[2].Width)
	}
	if shares[3].Width != 0 {
		t.Errorf("zero category width = %d, want 0", shares[3].Width)
	}

	if got := CategoryShares(nil); len(got) != 0 {
		t.Fatalf("nil totals produced %d shares", len(got))
	}
}
