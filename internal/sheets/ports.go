// Package sheets defines the outbound port for off-site expense backups.
package sheets

import "context"

type (
	// BackupRow is one expense flattened for an external backup sheet.
	BackupRow struct {
		ID          int64
		Username    string
		Date        string
		Category    string
		AmountCents int64
		Note        string
	}

	// BackupWriter appends a row to the backup target and returns a
	// reference to where it landed.
	BackupWriter interface {
		Append(ctx context.Context, row BackupRow) (rowRef string, err error)
	}
)
