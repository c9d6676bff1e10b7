package export

import (
	"strings"
	"testing"

	"outgo/internal/core"
)

func expense(id int64, date, category string, cents int64, note string) core.Expense {
	d, _ := core.ParseDate(date)
	return core.Expense{ID: id, Date: d, Category: category, Amount: core.Money{Cents: cents}, Note: note}
}

func TestWriteCSV(t *testing.T) {
	var sb strings.Builder
	expenses := []core.Expense{
		expense(1, "2025-03-01", "Food", 1250, "lunch"),
		expense(2, "2025-03-02", "Travel", 99, ""),
	}

	if err := WriteCSV(&sb, expenses); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3: %q", len(lines), sb.String())
	}
	if lines[0] != "ID,Date,Category,Amount,Note" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "1,2025-03-01,Food,12.50,lunch" {
		t.Fatalf("row 1 = %q", lines[1])
	}
	if lines[2] != "2,2025-03-02,Travel,0.99," {
		t.Fatalf("row 2 = %q", lines[2])
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var sb strings.Builder
	if err := WriteCSV(&sb, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if strings.TrimSpace(sb.String()) != "ID,Date,Category,Amount,Note" {
		t.Fatalf("empty export = %q", sb.String())
	}
}

func TestWriteCSVQuotesCommas(t *testing.T) {
	var sb strings.Builder
	expenses := []core.Expense{expense(1, "2025-03-01", "Food", 100, "bread, milk")}
	if err := WriteCSV(&sb, expenses); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !strings.Contains(sb.String(), `"bread, milk"`) {
		t.Fatalf("comma note not quoted: %q", sb.String())
	}
}

func TestFilename(t *testing.T) {
	start, _ := core.ParseDate("2025-01-01")
	end, _ := core.ParseDate("2025-03-31")

	got := Filename("alice", core.Filter{Start: start, End: end})
	if got != "alice_expenses_2025-01-01_to_2025-03-31.csv" {
		t.Fatalf("Filename = %q", got)
	}

	got = Filename("bob", core.Filter{})
	if got != "bob_expenses_all_to_all.csv" {
		t.Fatalf("Filename = %q", got)
	}
}
