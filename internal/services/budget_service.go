package services

import (
	"context"
	"fmt"

	"outgo/internal/core"
	"outgo/internal/storage"
)

// BudgetService manages monthly budgets and their status.
type BudgetService struct {
	storage *storage.SQLiteRepository
}

func NewBudgetService(storage *storage.SQLiteRepository) *BudgetService {
	return &BudgetService{storage: storage}
}

// Set stores or replaces the budget for a month. A zero amount is allowed
// and disables threshold alerts for the month.
func (s *BudgetService) Set(ctx context.Context, userID int64, month core.MonthKey, amount core.Money) error {
	if err := month.Validate(); err != nil {
		return err
	}
	if amount.Cents < 0 {
		return core.ErrInvalidAmount
	}
	return s.storage.SetBudget(ctx, userID, month, amount.Cents)
}

// Get returns the budget for a month, reporting whether one is set.
func (s *BudgetService) Get(ctx context.Context, userID int64, month core.MonthKey) (core.Budget, bool, error) {
	if err := month.Validate(); err != nil {
		return core.Budget{}, false, err
	}
	amount, ok, err := s.storage.GetBudget(ctx, userID, month)
	if err != nil {
		return core.Budget{}, false, err
	}
	return core.Budget{Month: month, Amount: core.Money{Cents: amount}}, ok, nil
}

// Status compares the month's spending against its budget.
func (s *BudgetService) Status(ctx context.Context, userID int64, month core.MonthKey) (core.BudgetStatus, error) {
	if err := month.Validate(); err != nil {
		return core.BudgetStatus{}, err
	}
	budget, hasBudget, err := s.storage.GetBudget(ctx, userID, month)
	if err != nil {
		return core.BudgetStatus{}, fmt.Errorf("get budget: %w", err)
	}
	spent, err := s.storage.MonthTotal(ctx, userID, month)
	if err != nil {
		return core.BudgetStatus{}, fmt.Errorf("total month: %w", err)
	}
	return core.EvaluateBudget(month, hasBudget, budget, spent), nil
}
