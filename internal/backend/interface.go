package backend

import (
	"context"

	"pennywise/internal/auth"
	"pennywise/internal/core"
)

// Auth is the identity side of the data client. Handlers only react to its
// results; credential checks, token issuance and OAuth all live behind it.
type Auth interface {
	SignInWithPassword(ctx context.Context, email, password string) (core.Session, error)
	SignUp(ctx context.Context, email, password, fullName string) (core.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (core.User, error)
	RefreshSession(ctx context.Context, refreshToken string) (core.Session, error)

	// SignInWithOAuth returns the provider URL to send the browser to. next
	// is where the callback lands once the code has been exchanged.
	SignInWithOAuth(ctx context.Context, provider, next string) (string, error)
	ExchangeCodeForSession(ctx context.Context, code, state string) (core.Session, string, error)
	Providers() []string

	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	VerifyRecovery(ctx context.Context, tokenHash string) (core.Session, error)
	UpdatePassword(ctx context.Context, accessToken, password string) (core.User, error)

	// OnAuthStateChange registers fn until ctx is done or the returned
	// function is called, whichever comes first.
	OnAuthStateChange(ctx context.Context, fn func(core.AuthEvent)) (unsubscribe func())
}

type ExpenseTable interface {
	// ListExpenses returns the user's expenses, newest first.
	ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
	InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, userID, id string) error
}

type CategoryTable interface {
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	InsertCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	// DeleteCategory also clears the category from the user's expenses.
	DeleteCategory(ctx context.Context, userID, id string) error
}

type CurrencyTable interface {
	ListCurrencies(ctx context.Context) ([]core.Currency, error)
	GetCurrency(ctx context.Context, code string) (core.Currency, error)
}

type PreferenceTable interface {
	// GetPreference returns core.ErrNotFound when the user never chose one.
	GetPreference(ctx context.Context, userID string) (core.Preference, error)
	UpsertPreference(ctx context.Context, p core.Preference) error
}

// Store is everything a persistence backend provides besides auth.
type Store interface {
	ExpenseTable
	CategoryTable
	CurrencyTable
	PreferenceTable
	Ping(ctx context.Context) error
}

// LedgerPublisher announces that a user's ledger changed.
type LedgerPublisher interface {
	PublishLedgerSync(ctx context.Context, userID string) error
}

// Client is the explicitly constructed data client passed to every component.
type Client struct {
	Auth        Auth
	Expenses    ExpenseTable
	Categories  CategoryTable
	Currencies  CurrencyTable
	Preferences PreferenceTable

	// Ledger is nil when no message broker is configured.
	Ledger LedgerPublisher

	ping func(ctx context.Context) error
}

// NewClient wires a client from a store and an auth implementation.
func NewClient(store Store, auth Auth) *Client {
	return &Client{
		Auth:        auth,
		Expenses:    store,
		Categories:  store,
		Currencies:  store,
		Preferences: store,
		ping:        store.Ping,
	}
}

// Ping checks that the underlying store answers.
func (c *Client) Ping(ctx context.Context) error {
	if c.ping == nil {
		return nil
	}
	return c.ping(ctx)
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the client and the function releasing its resources.
type BackendResult struct {
	Client *Client
	// AuthService is the concrete auth implementation behind Client.Auth,
	// for admin tooling that creates users directly.
	AuthService *auth.Service
	Cleanup     CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
