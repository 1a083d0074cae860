package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pennywise/internal/sheets"
)

func TestWriteLedgerReplacesSnapshot(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.WriteLedger(ctx, sheets.Ledger{UserID: "u1", Rows: []sheets.LedgerRow{{Title: "A"}, {Title: "B"}}}))
	require.NoError(t, s.WriteLedger(ctx, sheets.Ledger{UserID: "u1", Rows: []sheets.LedgerRow{{Title: "C"}}, Total: decimal.NewFromInt(3)}))

	l, ok := s.Ledger("u1")
	require.True(t, ok)
	require.Len(t, l.Rows, 1)
	assert.Equal(t, "C", l.Rows[0].Title)
	assert.Equal(t, 2, s.Writes())

	_, ok = s.Ledger("u2")
	assert.False(t, ok)
}
