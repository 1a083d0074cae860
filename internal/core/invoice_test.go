package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildInvoice(t *testing.T) {
	eur := Currency{Code: "EUR", Symbol: "€", Name: "Euro"}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expenses := []Expense{
		{Title: "Taxi", Amount: dec("7.25"), CreatedAt: now},
		{Title: "Lunch", Amount: dec("12.50"), CreatedAt: now.Add(-time.Hour)},
	}

	inv := BuildInvoice(eur, expenses)

	assert.Len(t, inv.Lines, 2)
	assert.Equal(t, "Taxi", inv.Lines[0].Title)
	assert.Equal(t, "€19.75 EUR", inv.FormattedTotal())
	assert.Equal(t, "12.50 EUR", inv.FormatLine(inv.Lines[1]))
}

func TestBuildInvoiceEmpty(t *testing.T) {
	inv := BuildInvoice(DefaultCurrency, nil)
	assert.Empty(t, inv.Lines)
	assert.Equal(t, "$0.00 USD", inv.FormattedTotal())
}
