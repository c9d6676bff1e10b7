// Package services orchestrates expense, budget and report operations
// across the SQLite store and the AMQP event stream.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"outgo/internal/amqp"
	"outgo/internal/core"
	"outgo/internal/storage"
)

// EventPublisher is the slice of the AMQP client the services need.
type EventPublisher interface {
	PublishExpenseBackup(ctx context.Context, id int64) error
	PublishBudgetAlert(ctx context.Context, alert amqp.BudgetAlertMessage) error
}

// ExpenseService persists expenses and emits backup and alert events.
// A nil publisher disables eventing, the local write still succeeds.
type ExpenseService struct {
	storage *storage.SQLiteRepository
	events  EventPublisher
}

func NewExpenseService(storage *storage.SQLiteRepository, events EventPublisher) *ExpenseService {
	return &ExpenseService{storage: storage, events: events}
}

// Create saves an expense and returns its id together with the month's
// budget status after the write.
func (s *ExpenseService) Create(ctx context.Context, user core.User, e core.Expense) (int64, core.BudgetStatus, error) {
	if err := e.Validate(); err != nil {
		return 0, core.BudgetStatus{}, err
	}

	id, err := s.storage.CreateExpense(ctx, user.ID, e)
	if err != nil {
		return 0, core.BudgetStatus{}, fmt.Errorf("save expense: %w", err)
	}

	status := s.monthStatus(ctx, user.ID, core.MonthKeyOf(e.Date))

	s.publishBackup(ctx, id)
	s.publishAlertIfNeeded(ctx, user, status)

	return id, status, nil
}

// Update rewrites an expense the user owns and re-evaluates the budget.
func (s *ExpenseService) Update(ctx context.Context, user core.User, e core.Expense) (core.BudgetStatus, error) {
	if err := e.Validate(); err != nil {
		return core.BudgetStatus{}, err
	}

	if err := s.storage.UpdateExpense(ctx, user.ID, e); err != nil {
		return core.BudgetStatus{}, err
	}

	status := s.monthStatus(ctx, user.ID, core.MonthKeyOf(e.Date))

	s.publishBackup(ctx, e.ID)
	s.publishAlertIfNeeded(ctx, user, status)

	return status, nil
}

func (s *ExpenseService) Delete(ctx context.Context, userID, id int64) error {
	return s.storage.DeleteExpense(ctx, userID, id)
}

func (s *ExpenseService) Get(ctx context.Context, userID, id int64) (core.Expense, error) {
	return s.storage.GetExpense(ctx, userID, id)
}

func (s *ExpenseService) List(ctx context.Context, userID int64, f core.Filter) ([]core.Expense, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return s.storage.ListExpenses(ctx, userID, f)
}

// monthStatus evaluates the budget after a write. Lookup failures degrade
// to an ok status rather than failing the write that already happened.
func (s *ExpenseService) monthStatus(ctx context.Context, userID int64, month core.MonthKey) core.BudgetStatus {
	budget, hasBudget, err := s.storage.GetBudget(ctx, userID, month)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load budget for status", "month", month, "error", err)
		return core.EvaluateBudget(month, false, 0, 0)
	}
	spent, err := s.storage.MonthTotal(ctx, userID, month)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to total month for status", "month", month, "error", err)
		return core.EvaluateBudget(month, false, 0, 0)
	}
	return core.EvaluateBudget(month, hasBudget, budget, spent)
}

func (s *ExpenseService) publishBackup(ctx context.Context, id int64) {
	if s.events == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping backup message")
		return
	}
	if err := s.events.PublishExpenseBackup(ctx, id); err != nil {
		// Don't fail the request, the expense is saved locally
		slog.ErrorContext(ctx, "Failed to publish backup message", "id", id, "error", err)
	}
}

func (s *ExpenseService) publishAlertIfNeeded(ctx context.Context, user core.User, status core.BudgetStatus) {
	if status.Level == core.BudgetOK {
		return
	}
	if s.events == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping budget alert")
		return
	}

	alert := amqp.BudgetAlertMessage{
		UserID:      user.ID,
		Username:    user.Username,
		Month:       string(status.Month),
		SpentCents:  status.Spent.Cents,
		BudgetCents: status.Budget.Cents,
		Level:       status.Level,
	}
	if err := s.events.PublishBudgetAlert(ctx, alert); err != nil {
		slog.ErrorContext(ctx, "Failed to publish budget alert",
			"user_id", user.ID, "month", status.Month, "error", err)
	}
}
