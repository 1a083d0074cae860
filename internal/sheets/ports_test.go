package sheets

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pennywise/internal/core"
)

func TestNewLedgerResolvesCategories(t *testing.T) {
	eur := core.Currency{Code: "EUR", Symbol: "€", Name: "Euro"}
	at := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	inv := core.BuildInvoice(eur, []core.Expense{
		{ID: "e2", Title: "Dinner", Amount: decimal.RequireFromString("12.50"), CategoryID: "c1", CreatedAt: at},
		{ID: "e1", Title: "Parking", Amount: decimal.RequireFromString("7.25"), CategoryID: "gone", CreatedAt: at},
	})

	l := NewLedger("u1", inv, []core.Category{{ID: "c1", Name: "Food"}})
	require.Len(t, l.Rows, 2)
	assert.Equal(t, "Food", l.Rows[0].Category)
	assert.Equal(t, "", l.Rows[1].Category)
	assert.Equal(t, "19.75", l.Total.StringFixed(2))
	assert.Equal(t, "EUR", l.Currency.Code)
}
