package google

import (
	"context"
	"testing"

	ports "outgo/internal/sheets"
)

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base     string
		year     int
		expected string
	}{
		{"Expenses", 2025, "2025 Expenses"},
		{"Backup", 2024, "2024 Backup"},
		{"2023 Expenses", 2025, "2023 Expenses"}, // already prefixed
	}

	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.expected)
		}
	}
}

func TestNewFromEnvRequiresSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	if _, err := NewFromEnv(context.Background()); err == nil {
		t.Fatal("expected error without GOOGLE_SPREADSHEET_ID")
	}
}

func TestNewFromEnvRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "sheet-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if _, err := NewFromEnv(context.Background()); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestAppendWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "id", sheetName: "2025 Expenses"}
	if _, err := c.Append(context.Background(), ports.BackupRow{}); err == nil {
		t.Fatal("expected error with uninitialized service")
	}
}
