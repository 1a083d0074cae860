// Package memory keeps mirrored ledgers in process, for tests and for
// workers running without a spreadsheet.
package memory

import (
	"context"
	"sync"

	"pennywise/internal/sheets"
)

var _ sheets.LedgerWriter = (*Store)(nil)

type Store struct {
	mu      sync.Mutex
	ledgers map[string]sheets.Ledger
	writes  int
}

func New() *Store {
	return &Store{ledgers: make(map[string]sheets.Ledger)}
}

func (s *Store) WriteLedger(_ context.Context, l sheets.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := append([]sheets.LedgerRow(nil), l.Rows...)
	l.Rows = rows
	s.ledgers[l.UserID] = l
	s.writes++
	return nil
}

// Ledger returns the last ledger written for userID.
func (s *Store) Ledger(userID string) (sheets.Ledger, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[userID]
	return l, ok
}

func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
