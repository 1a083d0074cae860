package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceLine struct {
	Title      string
	Amount     decimal.Decimal
	CreatedAt  time.Time
	CategoryID string
}

// Invoice is a read-only listing of a user's expenses in one currency.
// Amounts are shown as stored; no conversion between currencies happens.
type Invoice struct {
	Currency Currency
	Lines    []InvoiceLine
	Total    decimal.Decimal
}

// BuildInvoice keeps the order of expenses as given.
func BuildInvoice(currency Currency, expenses []Expense) Invoice {
	inv := Invoice{
		Currency: currency,
		Lines:    make([]InvoiceLine, 0, len(expenses)),
		Total:    Total(expenses),
	}
	for _, e := range expenses {
		inv.Lines = append(inv.Lines, InvoiceLine{Title: e.Title, Amount: e.Amount, CreatedAt: e.CreatedAt, CategoryID: e.CategoryID})
	}
	return inv
}

// FormattedTotal renders the total, e.g. "€19.75 EUR".
func (inv Invoice) FormattedTotal() string {
	return FormatMoney(inv.Currency, inv.Total)
}

// FormatLine renders a line amount as "12.50 EUR".
func (inv Invoice) FormatLine(l InvoiceLine) string {
	return FormatAmount(l.Amount) + " " + inv.Currency.Code
}
