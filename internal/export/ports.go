// Package export renders bill registers outside the API: a PDF document and
// rows appended to a spreadsheet.
package export

import (
	"context"
	"errors"

	"accounting/internal/core"
)

// ErrNotConfigured is returned when no spreadsheet writer is set up.
var ErrNotConfigured = errors.New("sheets export is not configured")

// BillWriter appends bills to an external sheet and returns a reference to
// the written range.
type BillWriter interface {
	AppendBills(ctx context.Context, bills []core.Bill) (ref string, err error)
}

// Header is the column layout shared by every writer.
var Header = []string{"Date", "Vendor", "Bill #", "Amount", "Status", "Category", "Due date", "Description"}

// Row flattens a bill in Header order.
func Row(b core.Bill) []any {
	return []any{
		b.BillDate,
		b.Vendor,
		b.BillNumber,
		core.Float(b.Amount),
		b.Status,
		b.CategoryID,
		b.DueDate,
		b.Description,
	}
}
