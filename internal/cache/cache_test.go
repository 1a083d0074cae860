package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pennywise/internal/core"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute).WithClock(func() time.Time { return now })
	c.Set("k", "v")
	c.Set("other", "v")

	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 0, c.Size())

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

type countingSource struct {
	lists, gets int
}

func (s *countingSource) ListCurrencies(context.Context) ([]core.Currency, error) {
	s.lists++
	return []core.Currency{{Code: "EUR", Symbol: "€", Name: "Euro"}, {Code: "USD", Symbol: "$", Name: "US Dollar"}}, nil
}

func (s *countingSource) GetCurrency(_ context.Context, code string) (core.Currency, error) {
	s.gets++
	if code != "EUR" {
		return core.Currency{}, core.ErrNotFound
	}
	return core.Currency{Code: "EUR", Symbol: "€", Name: "Euro"}, nil
}

func TestCurrenciesCachesLookups(t *testing.T) {
	src := &countingSource{}
	c := NewCurrencies(src, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		list, err := c.ListCurrencies(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)
		cur, err := c.GetCurrency(ctx, "EUR")
		require.NoError(t, err)
		assert.Equal(t, "€", cur.Symbol)
	}
	assert.Equal(t, 1, src.lists)
	assert.Equal(t, 1, src.gets)

	_, err := c.GetCurrency(ctx, "XYZ")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = c.GetCurrency(ctx, "XYZ")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, 3, src.gets, "misses are not cached")
}

func TestManagerSweepsRegisteredCaches(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Second).WithClock(func() time.Time { return now })
	c.Set("a", 1)

	m := NewManager(nil)
	m.Register(c)
	now = now.Add(time.Minute)
	assert.Equal(t, 1, m.Sweep())

	m.StartCleanup(context.Background(), time.Millisecond)
	m.Stop()
	m.Stop()
}
