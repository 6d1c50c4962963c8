// Package export pushes monthly summary rows to an external spreadsheet.
package export

import "context"

// SummaryWriter appends rows to the configured summary sheet.
type SummaryWriter interface {
	WriteRows(ctx context.Context, rows [][]any) error
}
