package sheets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pennywise/internal/core"
)

// LedgerRow is one expense as mirrored to a spreadsheet.
type LedgerRow struct {
	Date     time.Time
	Title    string
	Category string
	Amount   decimal.Decimal
}

// Ledger is a full snapshot of one user's expenses in their display currency.
type Ledger struct {
	UserID   string
	Currency core.Currency
	Rows     []LedgerRow
	Total    decimal.Decimal
}

// NewLedger flattens an invoice, resolving category names.
func NewLedger(userID string, inv core.Invoice, categories []core.Category) Ledger {
	l := Ledger{
		UserID:   userID,
		Currency: inv.Currency,
		Rows:     make([]LedgerRow, 0, len(inv.Lines)),
		Total:    inv.Total,
	}
	for _, line := range inv.Lines {
		row := LedgerRow{Date: line.CreatedAt, Title: line.Title, Amount: line.Amount}
		if c, ok := core.FindCategory(categories, line.CategoryID); ok {
			row.Category = c.Name
		}
		l.Rows = append(l.Rows, row)
	}
	return l
}

// Ports for outbound adapters.
type (
	// LedgerWriter replaces the mirrored copy of a user's ledger.
	LedgerWriter interface {
		WriteLedger(ctx context.Context, l Ledger) error
	}
)
