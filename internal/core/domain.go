package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultCategories is the built-in category list offered to clients.
// Free-form categories are still accepted on expense entries.
var DefaultCategories = []string{
	"Food", "Travel", "Shopping", "Bills", "Entertainment", "Health",
	"Groceries", "Education", "Rent", "Utilities", "Other",
}

type (
	// Date is a calendar date without a time component.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// MonthKey identifies a calendar month as "YYYY-MM".
	MonthKey string

	User struct {
		ID        int64
		Username  string
		CreatedAt time.Time
	}

	Expense struct {
		ID       int64
		Date     Date
		Category string
		Amount   Money
		Note     string
	}

	Budget struct {
		Month  MonthKey
		Amount Money
	}

	// Filter narrows expense queries to a date range and category set.
	// Zero dates and an empty category list mean "no restriction".
	Filter struct {
		Start      Date
		End        Date
		Categories []string
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidMonth    = errors.New("invalid month key")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidUsername = errors.New("invalid username")
)

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// MarshalJSON renders the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD" or the empty string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthKeyOf returns the month key for a date, e.g. 2025-03-14 -> "2025-03".
func MonthKeyOf(d Date) MonthKey {
	return MonthKey(d.Format("2006-01"))
}

// ParseMonthKey validates and normalizes a "YYYY-MM" string.
func ParseMonthKey(s string) (MonthKey, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse("2006-01", s); err != nil {
		return "", ErrInvalidMonth
	}
	return MonthKey(s), nil
}

func (m MonthKey) Validate() error {
	_, err := ParseMonthKey(string(m))
	return err
}

// Bounds returns the inclusive date-string range covering the month.
// The "-31" upper bound relies on lexicographic comparison of
// zero-padded dates, so it covers every month regardless of length.
func (m MonthKey) Bounds() (start, end string) {
	return string(m) + "-01", string(m) + "-31"
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(e.Category) > 60 {
		return errors.New("category too long (max 60 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if len(e.Note) > 200 {
		return errors.New("note too long (max 200 characters)")
	}
	return nil
}

// ValidateUsername enforces the account naming rules: 3..32 characters,
// letters, digits, underscore, dot and dash only.
func ValidateUsername(username string) error {
	if len(username) < 3 || len(username) > 32 {
		return ErrInvalidUsername
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '.' || r == '-':
		default:
			return ErrInvalidUsername
		}
	}
	return nil
}

// RangeDays returns the inclusive number of days covered by the filter,
// or 0 when either bound is missing.
func (f Filter) RangeDays() int {
	if f.Start.IsZero() || f.End.IsZero() {
		return 0
	}
	days := int(f.End.Sub(f.Start.Time).Hours()/24) + 1
	if days < 1 {
		return 0
	}
	return days
}

func (f Filter) Validate() error {
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start.Time) {
		return errors.New("end date before start date")
	}
	return nil
}

// Key returns a stable cache key for the filter.
func (f Filter) Key() string {
	start, end := "", ""
	if !f.Start.IsZero() {
		start = f.Start.String()
	}
	if !f.End.IsZero() {
		end = f.End.String()
	}
	return fmt.Sprintf("%s|%s|%s", start, end, strings.Join(f.Categories, ","))
}
