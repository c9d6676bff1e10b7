// Package notify delivers budget threshold alerts to users.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"outgo/internal/core"
)

// Alert describes a budget threshold crossing for one user and month.
type Alert struct {
	Username    string
	Month       string
	SpentCents  int64
	BudgetCents int64
	Level       string
}

// Notifier delivers an alert to its destination.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// Message renders the human-readable alert text.
func (a Alert) Message() string {
	spent := core.FormatCents(a.SpentCents)
	budget := core.FormatCents(a.BudgetCents)
	if a.Level == core.BudgetAlert {
		return fmt.Sprintf("Budget exceeded for %s: %s spent %s of %s", a.Month, a.Username, spent, budget)
	}
	return fmt.Sprintf("Budget warning for %s: %s spent %s of %s", a.Month, a.Username, spent, budget)
}

// LogNotifier writes alerts to the structured log. It is the fallback
// when no external channel is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, alert Alert) error {
	n.logger.WarnContext(ctx, "Budget alert",
		"username", alert.Username,
		"month", alert.Month,
		"spent_cents", alert.SpentCents,
		"budget_cents", alert.BudgetCents,
		"level", alert.Level)
	return nil
}
