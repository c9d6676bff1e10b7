// Package export renders expense lists as CSV downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"outgo/internal/core"
)

type csvRow struct {
	ID       int64  `csv:"ID"`
	Date     string `csv:"Date"`
	Category string `csv:"Category"`
	Amount   string `csv:"Amount"`
	Note     string `csv:"Note"`
}

// WriteCSV streams the expenses as CSV with a header row. Amounts are
// rendered with two decimal places.
func WriteCSV(w io.Writer, expenses []core.Expense) error {
	rows := make([]csvRow, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, csvRow{
			ID:       e.ID,
			Date:     e.Date.String(),
			Category: e.Category,
			Amount:   decimal.New(e.Amount.Cents, -2).StringFixed(2),
			Note:     e.Note,
		})
	}

	writer := gocsv.NewSafeCSVWriter(csv.NewWriter(w))
	if err := gocsv.MarshalCSV(&rows, writer); err != nil {
		return fmt.Errorf("marshal csv: %w", err)
	}
	return nil
}

// Filename builds the download name for an export, e.g.
// "alice_expenses_2025-01-01_to_2025-03-31.csv".
func Filename(username string, f core.Filter) string {
	start, end := "all", "all"
	if !f.Start.IsZero() {
		start = f.Start.String()
	}
	if !f.End.IsZero() {
		end = f.End.String()
	}
	return fmt.Sprintf("%s_expenses_%s_to_%s.csv", username, start, end)
}
