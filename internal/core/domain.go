package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

type (
	User struct {
		ID        string
		Email     string
		FullName  string
		Provider  string
		CreatedAt time.Time
	}

	// Session is an authenticated identity plus the tokens that prove it.
	Session struct {
		AccessToken  string
		RefreshToken string
		ExpiresAt    time.Time
		User         User
	}

	Expense struct {
		ID         string
		UserID     string
		Title      string
		Amount     decimal.Decimal
		CreatedAt  time.Time
		CategoryID string // empty when uncategorised
	}

	Category struct {
		ID     string
		UserID string
		Name   string
		Budget decimal.Decimal
	}

	Currency struct {
		Code   string
		Symbol string
		Name   string
	}

	Preference struct {
		UserID       string
		CurrencyCode string
	}
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
	ErrIncomplete      = errors.New("required fields missing")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyTitle      = errors.New("empty title")
	ErrEmptyName       = errors.New("empty category name")
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrMissingUser     = errors.New("missing user id")
)

// DisplayName is the full name when one was given at sign-up, else the email.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	return u.Email
}

func (e Expense) Validate() error {
	if e.UserID == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if e.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (c Category) Validate() error {
	if c.UserID == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Budget.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// ExpenseInput carries raw form values for an expense add or edit.
type ExpenseInput struct {
	Title      string
	Amount     string
	CategoryID string
}

// Complete reports whether every field was filled in. Incomplete input is
// ignored rather than rejected.
func (in ExpenseInput) Complete() bool {
	return strings.TrimSpace(in.Title) != "" &&
		strings.TrimSpace(in.Amount) != "" &&
		strings.TrimSpace(in.CategoryID) != ""
}

// Expense parses the input into an expense owned by userID.
func (in ExpenseInput) Expense(userID string) (Expense, error) {
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return Expense{}, err
	}
	e := Expense{
		UserID:     userID,
		Title:      strings.TrimSpace(in.Title),
		Amount:     amount,
		CategoryID: strings.TrimSpace(in.CategoryID),
	}
	return e, e.Validate()
}

type CategoryInput struct {
	Name   string
	Budget string
}

func (in CategoryInput) Complete() bool {
	return strings.TrimSpace(in.Name) != "" && strings.TrimSpace(in.Budget) != ""
}

func (in CategoryInput) Category(userID string) (Category, error) {
	budget, err := ParseAmount(in.Budget)
	if err != nil {
		return Category{}, err
	}
	c := Category{
		UserID: userID,
		Name:   strings.TrimSpace(in.Name),
		Budget: budget,
	}
	return c, c.Validate()
}

// FindExpense returns the expense with the given id from a loaded list.
func FindExpense(expenses []Expense, id string) (Expense, bool) {
	for _, e := range expenses {
		if e.ID == id {
			return e, true
		}
	}
	return Expense{}, false
}

func FindCategory(categories []Category, id string) (Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}
