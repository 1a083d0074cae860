// Package memory is an in-process store used by tests and demo runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pennywise/internal/core"
)

// Currencies seeded into every new store, matching the SQL migrations.
var SeedCurrencies = []core.Currency{
	{Code: "AUD", Symbol: "A$", Name: "Australian Dollar"},
	{Code: "CAD", Symbol: "C$", Name: "Canadian Dollar"},
	{Code: "CHF", Symbol: "CHF ", Name: "Swiss Franc"},
	{Code: "EUR", Symbol: "€", Name: "Euro"},
	{Code: "GBP", Symbol: "£", Name: "British Pound"},
	{Code: "INR", Symbol: "₹", Name: "Indian Rupee"},
	{Code: "JPY", Symbol: "¥", Name: "Japanese Yen"},
	{Code: "USD", Symbol: "$", Name: "US Dollar"},
}

type userRecord struct {
	user core.User
	hash string
}

type Store struct {
	mu          sync.Mutex
	now         func() time.Time
	users       map[string]userRecord
	tokens      map[string]core.AuthToken
	expenses    map[string]core.Expense
	categories  map[string]core.Category
	currencies  map[string]core.Currency
	preferences map[string]core.Preference
}

func New() *Store {
	s := &Store{
		now:         time.Now,
		users:       make(map[string]userRecord),
		tokens:      make(map[string]core.AuthToken),
		expenses:    make(map[string]core.Expense),
		categories:  make(map[string]core.Category),
		currencies:  make(map[string]core.Currency),
		preferences: make(map[string]core.Preference),
	}
	for _, c := range SeedCurrencies {
		s.currencies[c.Code] = c
	}
	return s
}

// SetClock replaces the creation timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateUser(_ context.Context, u core.User, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.users {
		if strings.EqualFold(rec.user.Email, u.Email) {
			return core.ErrConflict
		}
	}
	s.users[u.ID] = userRecord{user: u, hash: passwordHash}
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.users {
		if strings.EqualFold(rec.user.Email, email) {
			return rec.user, rec.hash, nil
		}
	}
	return core.User{}, "", core.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return rec.user, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return core.ErrNotFound
	}
	rec.hash = hash
	s.users[userID] = rec
	return nil
}

func (s *Store) SaveToken(_ context.Context, t core.AuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.Hash] = t
	return nil
}

func (s *Store) ConsumeToken(_ context.Context, kind, hash string, now time.Time) (core.AuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[hash]
	if !ok || t.Kind != kind {
		return core.AuthToken{}, core.ErrNotFound
	}
	delete(s.tokens, hash)
	if !now.Before(t.ExpiresAt) {
		return core.AuthToken{}, core.ErrNotFound
	}
	return t, nil
}

func (s *Store) RevokeTokens(_ context.Context, userID, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, t := range s.tokens {
		if t.UserID == userID && t.Kind == kind {
			delete(s.tokens, hash)
		}
	}
	return nil
}

func (s *Store) ListExpenses(_ context.Context, userID string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) InsertExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = newID()
	e.CreatedAt = s.now().UTC()
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.expenses[e.ID]
	if !ok || cur.UserID != e.UserID {
		return core.ErrNotFound
	}
	cur.Title, cur.Amount, cur.CategoryID = e.Title, e.Amount, e.CategoryID
	s.expenses[e.ID] = cur
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.expenses[id]; ok && cur.UserID == userID {
		delete(s.expenses, id)
	}
	return nil
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0)
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) InsertCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = newID()
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.categories[c.ID]
	if !ok || cur.UserID != c.UserID {
		return core.ErrNotFound
	}
	cur.Name, cur.Budget = c.Name, c.Budget
	s.categories[c.ID] = cur
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.categories[id]
	if !ok || cur.UserID != userID {
		return nil
	}
	delete(s.categories, id)
	for eid, e := range s.expenses {
		if e.UserID == userID && e.CategoryID == id {
			e.CategoryID = ""
			s.expenses[eid] = e
		}
	}
	return nil
}

func (s *Store) ListCurrencies(context.Context) ([]core.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Currency, 0, len(s.currencies))
	for _, c := range s.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) GetCurrency(_ context.Context, code string) (core.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.currencies[code]
	if !ok {
		return core.Currency{}, core.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetPreference(_ context.Context, userID string) (core.Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.preferences[userID]
	if !ok {
		return core.Preference{}, core.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpsertPreference(_ context.Context, p core.Preference) error {
	if p.UserID == "" {
		return core.ErrMissingUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[p.UserID] = p
	return nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
