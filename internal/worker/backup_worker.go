// Package worker runs the background backup and notification jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"outgo/internal/amqp"
	"outgo/internal/notify"
	"outgo/internal/sheets"
	"outgo/internal/storage"
)

// BackupWorker backs expenses up to the configured sheet and forwards
// budget alerts to the notifier. A nil backup writer turns backup
// handling into a no-op so the worker can run notification-only.
type BackupWorker struct {
	storage   *storage.SQLiteRepository
	backup    sheets.BackupWriter
	notifier  notify.Notifier
	batchSize int
}

func NewBackupWorker(storage *storage.SQLiteRepository, backup sheets.BackupWriter, notifier notify.Notifier, batchSize int) *BackupWorker {
	return &BackupWorker{
		storage:   storage,
		backup:    backup,
		notifier:  notifier,
		batchSize: batchSize,
	}
}

// HandleBackupMessage processes a single expense backup message from AMQP.
func (w *BackupWorker) HandleBackupMessage(ctx context.Context, msg *amqp.ExpenseBackupMessage) error {
	slog.InfoContext(ctx, "Processing backup message", "id", msg.ID)

	if w.backup == nil {
		slog.WarnContext(ctx, "No backup writer configured, skipping", "id", msg.ID)
		return nil
	}

	// The message carries only the id; read the current row and its owner.
	p, err := w.storage.GetBackupExpense(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		// Already backed up or deleted since the message was queued.
		slog.InfoContext(ctx, "Expense no longer pending, nothing to do", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get backup expense: %w", err)
	}

	return w.backupExpense(ctx, p)
}

// HandleAlertMessage forwards a budget alert to the notifier.
func (w *BackupWorker) HandleAlertMessage(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	slog.InfoContext(ctx, "Processing budget alert",
		"user_id", msg.UserID,
		"month", msg.Month,
		"level", msg.Level)

	if w.notifier == nil {
		slog.WarnContext(ctx, "No notifier configured, dropping alert", "user_id", msg.UserID)
		return nil
	}

	alert := notify.Alert{
		Username:    msg.Username,
		Month:       msg.Month,
		SpentCents:  msg.SpentCents,
		BudgetCents: msg.BudgetCents,
		Level:       msg.Level,
	}
	if err := w.notifier.Notify(ctx, alert); err != nil {
		return fmt.Errorf("deliver budget alert: %w", err)
	}
	return nil
}

func (w *BackupWorker) backupExpense(ctx context.Context, p storage.BackupExpense) error {
	row := sheets.BackupRow{
		ID:          p.ID,
		Username:    p.Username,
		Date:        p.Expense.Date.String(),
		Category:    p.Expense.Category,
		AmountCents: p.Expense.Amount.Cents,
		Note:        p.Expense.Note,
	}

	ref, err := w.backup.Append(ctx, row)
	if err != nil {
		if markErr := w.storage.MarkBackupError(ctx, p.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark backup error", "id", p.ID, "error", markErr)
		}
		return fmt.Errorf("append to backup: %w", err)
	}

	if err := w.storage.MarkBackedUp(ctx, p.ID); err != nil {
		return fmt.Errorf("mark backed up: %w", err)
	}

	slog.InfoContext(ctx, "Expense backed up", "id", p.ID, "ref", ref)
	return nil
}

// ProcessPendingBackups sweeps expenses the message stream may have missed.
func (w *BackupWorker) ProcessPendingBackups(ctx context.Context) error {
	if w.backup == nil {
		return nil
	}

	pending, err := w.storage.GetPendingBackupExpenses(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending backup expenses: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending backups", "count", len(pending))

	for _, p := range pending {
		if err := w.backupExpense(ctx, p); err != nil {
			slog.ErrorContext(ctx, "Failed to back up expense", "id", p.ID, "error", err)
		}
	}
	return nil
}

// StartupBackupCheck recovers expenses left pending by missed messages or
// worker downtime. It uses a larger batch than the periodic sweep.
func (w *BackupWorker) StartupBackupCheck(ctx context.Context) error {
	if w.backup == nil {
		slog.InfoContext(ctx, "No backup writer configured, skipping startup check")
		return nil
	}

	pending, err := w.storage.GetPendingBackupExpenses(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending backup expenses for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending backups found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending backups on startup, processing...", "count", len(pending))

	successCount := 0
	errorCount := 0
	for _, p := range pending {
		if err := w.backupExpense(ctx, p); err != nil {
			slog.ErrorContext(ctx, "Failed to back up expense during startup", "id", p.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup backup check completed",
		"total", len(pending),
		"backed_up", successCount,
		"errors", errorCount)
	return nil
}
