// Package storage implements the SQLite persistence layer.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"outgo/internal/core"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a row does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken is returned when a username is already registered.
	ErrUsernameTaken = errors.New("username already taken")
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// --- users ---

func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash string) (core.User, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.User{}, ErrUsernameTaken
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("create user: last insert id: %w", err)
	}

	return core.User{ID: id, Username: username, CreatedAt: time.Now().UTC()}, nil
}

// GetUserByUsername also returns the stored password hash for credential checks.
func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, string, error) {
	var (
		u       core.User
		hash    string
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`,
		username).Scan(&u.ID, &u.Username, &hash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, "", ErrNotFound
	}
	if err != nil {
		return core.User{}, "", fmt.Errorf("get user by username: %w", err)
	}
	u.CreatedAt = parseTimestamp(created)
	return u, hash, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	var (
		u       core.User
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, created_at FROM users WHERE id = ?`,
		id).Scan(&u.ID, &u.Username, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by id: %w", err)
	}
	u.CreatedAt = parseTimestamp(created)
	return u, nil
}

// parseTimestamp handles the text form SQLite uses for CURRENT_TIMESTAMP.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// --- expenses ---

func (r *SQLiteRepository) CreateExpense(ctx context.Context, userID int64, e core.Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, date, category, amount_cents, note)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, e.Date.String(), e.Category, e.Amount.Cents, e.Note)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create expense: last insert id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id int64) (core.Expense, error) {
	var (
		e       core.Expense
		dateStr string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, date, category, amount_cents, note
		 FROM expenses WHERE id = ? AND user_id = ?`,
		id, userID).Scan(&e.ID, &dateStr, &e.Category, &e.Amount.Cents, &e.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}

	e.Date, err = core.ParseDate(dateStr)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: parse date: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, userID int64, e core.Expense) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses
		 SET date = ?, category = ?, amount_cents = ?, note = ?,
		     updated_at = CURRENT_TIMESTAMP, backup_status = 'pending', backed_up_at = NULL
		 WHERE id = ? AND user_id = ?`,
		e.Date.String(), e.Category, e.Amount.Cents, e.Note, e.ID, userID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update expense: rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense: rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// filterClause builds the WHERE tail and args for an optional date/category filter.
// The returned clause always starts with "AND" or is empty.
func filterClause(f core.Filter) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	if !f.Start.IsZero() {
		sb.WriteString(" AND date >= ?")
		args = append(args, f.Start.String())
	}
	if !f.End.IsZero() {
		sb.WriteString(" AND date <= ?")
		args = append(args, f.End.String())
	}
	if len(f.Categories) > 0 {
		sb.WriteString(" AND category IN (?" + strings.Repeat(", ?", len(f.Categories)-1) + ")")
		for _, c := range f.Categories {
			args = append(args, c)
		}
	}
	return sb.String(), args
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64, f core.Filter) ([]core.Expense, error) {
	clause, args := filterClause(f)
	query := `SELECT id, date, category, amount_cents, note
		 FROM expenses WHERE user_id = ?` + clause + ` ORDER BY date ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, append([]any{userID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var (
			e       core.Expense
			dateStr string
		)
		if err := rows.Scan(&e.ID, &dateStr, &e.Category, &e.Amount.Cents, &e.Note); err != nil {
			return nil, fmt.Errorf("list expenses: scan: %w", err)
		}
		if e.Date, err = core.ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("list expenses: parse date: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// --- budgets ---

func (r *SQLiteRepository) SetBudget(ctx context.Context, userID int64, month core.MonthKey, amountCents int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, month, amount_cents) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, month) DO UPDATE SET amount_cents = excluded.amount_cents`,
		userID, string(month), amountCents)
	if err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	return nil
}

// GetBudget reports whether a budget row exists for the month.
func (r *SQLiteRepository) GetBudget(ctx context.Context, userID int64, month core.MonthKey) (int64, bool, error) {
	var amount int64
	err := r.db.QueryRowContext(ctx,
		`SELECT amount_cents FROM budgets WHERE user_id = ? AND month = ?`,
		userID, string(month)).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get budget: %w", err)
	}
	return amount, true, nil
}

// MonthTotal sums spending inside the month's calendar bounds.
func (r *SQLiteRepository) MonthTotal(ctx context.Context, userID int64, month core.MonthKey) (int64, error) {
	start, end := month.Bounds()
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		 WHERE user_id = ? AND date >= ? AND date <= ?`,
		userID, start, end).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("month total: %w", err)
	}
	return total, nil
}

// --- aggregates ---

func (r *SQLiteRepository) CategoryTotals(ctx context.Context, userID int64, f core.Filter) ([]core.CategoryTotal, error) {
	clause, args := filterClause(f)
	query := `SELECT category, SUM(amount_cents) AS total
		 FROM expenses WHERE user_id = ?` + clause + `
		 GROUP BY category ORDER BY total DESC`

	rows, err := r.db.QueryContext(ctx, query, append([]any{userID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	var totals []core.CategoryTotal
	for rows.Next() {
		var t core.CategoryTotal
		if err := rows.Scan(&t.Category, &t.Amount.Cents); err != nil {
			return nil, fmt.Errorf("category totals: scan: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	return totals, nil
}

func (r *SQLiteRepository) DailyTotals(ctx context.Context, userID int64, f core.Filter) ([]core.DailyTotal, error) {
	clause, args := filterClause(f)
	query := `SELECT date, SUM(amount_cents) AS total
		 FROM expenses WHERE user_id = ?` + clause + `
		 GROUP BY date ORDER BY date ASC`

	rows, err := r.db.QueryContext(ctx, query, append([]any{userID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	var totals []core.DailyTotal
	for rows.Next() {
		var (
			t       core.DailyTotal
			dateStr string
		)
		if err := rows.Scan(&dateStr, &t.Amount.Cents); err != nil {
			return nil, fmt.Errorf("daily totals: scan: %w", err)
		}
		if t.Date, err = core.ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("daily totals: parse date: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	return totals, nil
}

func (r *SQLiteRepository) MonthlyTotals(ctx context.Context, userID int64, f core.Filter) ([]core.MonthlyTotal, error) {
	clause, args := filterClause(f)
	query := `SELECT substr(date, 1, 7) AS month, SUM(amount_cents) AS total
		 FROM expenses WHERE user_id = ?` + clause + `
		 GROUP BY month ORDER BY month ASC`

	rows, err := r.db.QueryContext(ctx, query, append([]any{userID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	var totals []core.MonthlyTotal
	for rows.Next() {
		var (
			t     core.MonthlyTotal
			month string
		)
		if err := rows.Scan(&month, &t.Amount.Cents); err != nil {
			return nil, fmt.Errorf("monthly totals: scan: %w", err)
		}
		t.Month = core.MonthKey(month)
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	return totals, nil
}

// TopCategory returns the biggest spending category in the filtered range,
// or ok=false when there are no expenses.
func (r *SQLiteRepository) TopCategory(ctx context.Context, userID int64, f core.Filter) (core.CategoryTotal, bool, error) {
	clause, args := filterClause(f)
	query := `SELECT category, SUM(amount_cents) AS total
		 FROM expenses WHERE user_id = ?` + clause + `
		 GROUP BY category ORDER BY total DESC LIMIT 1`

	var t core.CategoryTotal
	err := r.db.QueryRowContext(ctx, query, append([]any{userID}, args...)...).
		Scan(&t.Category, &t.Amount.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CategoryTotal{}, false, nil
	}
	if err != nil {
		return core.CategoryTotal{}, false, fmt.Errorf("top category: %w", err)
	}
	return t, true, nil
}

// --- backup bookkeeping ---

// BackupExpense is an expense queued for off-site backup, joined with its owner.
type BackupExpense struct {
	ID       int64
	UserID   int64
	Username string
	Expense  core.Expense
}

// GetBackupExpense loads one expense for backup regardless of owner.
// Returns ErrNotFound when the row is gone or no longer pending.
func (r *SQLiteRepository) GetBackupExpense(ctx context.Context, id int64) (BackupExpense, error) {
	var (
		b       BackupExpense
		dateStr string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT e.id, e.user_id, u.username, e.date, e.category, e.amount_cents, e.note
		 FROM expenses e JOIN users u ON u.id = e.user_id
		 WHERE e.id = ? AND e.backup_status = 'pending'`, id).
		Scan(&b.ID, &b.UserID, &b.Username, &dateStr,
			&b.Expense.Category, &b.Expense.Amount.Cents, &b.Expense.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return BackupExpense{}, ErrNotFound
	}
	if err != nil {
		return BackupExpense{}, fmt.Errorf("get backup expense: %w", err)
	}
	if b.Expense.Date, err = core.ParseDate(dateStr); err != nil {
		return BackupExpense{}, fmt.Errorf("get backup expense: parse date: %w", err)
	}
	b.Expense.ID = b.ID
	return b, nil
}

func (r *SQLiteRepository) GetPendingBackupExpenses(ctx context.Context, limit int) ([]BackupExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.user_id, u.username, e.date, e.category, e.amount_cents, e.note
		 FROM expenses e JOIN users u ON u.id = e.user_id
		 WHERE e.backup_status = 'pending'
		 ORDER BY e.id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending backup expenses: %w", err)
	}
	defer rows.Close()

	var pending []BackupExpense
	for rows.Next() {
		var (
			b       BackupExpense
			dateStr string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.Username, &dateStr,
			&b.Expense.Category, &b.Expense.Amount.Cents, &b.Expense.Note); err != nil {
			return nil, fmt.Errorf("get pending backup expenses: scan: %w", err)
		}
		if b.Expense.Date, err = core.ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("get pending backup expenses: parse date: %w", err)
		}
		b.Expense.ID = b.ID
		pending = append(pending, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get pending backup expenses: %w", err)
	}
	return pending, nil
}

func (r *SQLiteRepository) MarkBackedUp(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET backup_status = 'done', backed_up_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark backed up: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkBackupError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET backup_status = 'error' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark backup error: %w", err)
	}
	return nil
}
