package services

import (
	"context"

	"outgo/internal/core"
	"outgo/internal/storage"
)

// ReportService computes aggregate views over a user's expenses.
type ReportService struct {
	storage *storage.SQLiteRepository
}

func NewReportService(storage *storage.SQLiteRepository) *ReportService {
	return &ReportService{storage: storage}
}

// Summary totals the filtered window. The daily average divides by the
// filter's day span when both bounds are set, otherwise by the number of
// days that actually have expenses.
func (s *ReportService) Summary(ctx context.Context, userID int64, f core.Filter) (core.PeriodSummary, error) {
	if err := f.Validate(); err != nil {
		return core.PeriodSummary{}, err
	}

	expenses, err := s.storage.ListExpenses(ctx, userID, f)
	if err != nil {
		return core.PeriodSummary{}, err
	}

	var total int64
	for _, e := range expenses {
		total += e.Amount.Cents
	}

	days := f.RangeDays()
	if days == 0 {
		daily, err := s.storage.DailyTotals(ctx, userID, f)
		if err != nil {
			return core.PeriodSummary{}, err
		}
		days = len(daily)
	}

	summary := core.PeriodSummary{
		Total:        core.Money{Cents: total},
		Transactions: len(expenses),
	}
	if days > 0 {
		summary.AvgDaily = core.Money{Cents: total / int64(days)}
	}

	if top, ok, err := s.storage.TopCategory(ctx, userID, f); err != nil {
		return core.PeriodSummary{}, err
	} else if ok {
		summary.TopCategory = &top
	}

	return summary, nil
}

// Categories returns per-category totals with chart widths, largest first.
func (s *ReportService) Categories(ctx context.Context, userID int64, f core.Filter) ([]core.CategoryShare, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	totals, err := s.storage.CategoryTotals(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	return core.CategoryShares(totals), nil
}

func (s *ReportService) Daily(ctx context.Context, userID int64, f core.Filter) ([]core.DailyTotal, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return s.storage.DailyTotals(ctx, userID, f)
}

func (s *ReportService) Monthly(ctx context.Context, userID int64, f core.Filter) ([]core.MonthlyTotal, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return s.storage.MonthlyTotals(ctx, userID, f)
}

// TopCategory returns the user's biggest spending category in the window.
func (s *ReportService) TopCategory(ctx context.Context, userID int64, f core.Filter) (core.CategoryTotal, bool, error) {
	if err := f.Validate(); err != nil {
		return core.CategoryTotal{}, false, err
	}
	return s.storage.TopCategory(ctx, userID, f)
}
