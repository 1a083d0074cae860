package cache

import (
	"context"
	"time"

	"pennywise/internal/core"
)

// CurrencySource is the read side of the currency table.
type CurrencySource interface {
	ListCurrencies(ctx context.Context) ([]core.Currency, error)
	GetCurrency(ctx context.Context, code string) (core.Currency, error)
}

const allCurrenciesKey = "*"

// Currencies memoises the currency list, which is reference data and only
// changes through migrations.
type Currencies struct {
	next   CurrencySource
	list   *LRUCache[[]core.Currency]
	byCode *LRUCache[core.Currency]
}

func NewCurrencies(next CurrencySource, ttl time.Duration) *Currencies {
	return &Currencies{
		next:   next,
		list:   NewLRUCache[[]core.Currency](1, ttl),
		byCode: NewLRUCache[core.Currency](64, ttl),
	}
}

func (c *Currencies) ListCurrencies(ctx context.Context) ([]core.Currency, error) {
	if cached, ok := c.list.Get(allCurrenciesKey); ok {
		return append([]core.Currency(nil), cached...), nil
	}
	currencies, err := c.next.ListCurrencies(ctx)
	if err != nil {
		return nil, err
	}
	c.list.Set(allCurrenciesKey, append([]core.Currency(nil), currencies...))
	return currencies, nil
}

// GetCurrency does not cache misses.
func (c *Currencies) GetCurrency(ctx context.Context, code string) (core.Currency, error) {
	if cached, ok := c.byCode.Get(code); ok {
		return cached, nil
	}
	cur, err := c.next.GetCurrency(ctx, code)
	if err != nil {
		return core.Currency{}, err
	}
	c.byCode.Set(code, cur)
	return cur, nil
}

// Caches exposes the underlying caches for registration with a Manager.
func (c *Currencies) Caches() []Cleaner {
	return []Cleaner{c.list, c.byCode}
}

func (c *Currencies) Stats() Stats {
	l, b := c.list.Stats(), c.byCode.Stats()
	return Stats{Size: l.Size + b.Size, Hits: l.Hits + b.Hits, Misses: l.Misses + b.Misses}
}
