package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"pennywise/internal/backend"
	"pennywise/internal/core"
	"pennywise/internal/log"
)

// View carries per-request UI state that is not persisted: which rows are
// being edited and, after a failed currency save, the locally selected code.
type View struct {
	EditExpenseID  string
	EditCategoryID string
	Currency       string
}

// Dashboard is everything the manager screen renders for one user.
type Dashboard struct {
	User       core.User
	Expenses   []core.Expense
	Categories []core.Category
	Currencies []core.Currency
	Currency   core.Currency
	Progress   []core.CategoryProgress
	Total      decimal.Decimal

	EditingExpense  *core.Expense
	EditingCategory *core.Category
}

// CategoryName returns the name of the category, or "" when unset or gone.
func (d *Dashboard) CategoryName(id string) string {
	if c, ok := core.FindCategory(d.Categories, id); ok {
		return c.Name
	}
	return ""
}

func (d *Dashboard) Money(amount decimal.Decimal) string {
	return core.FormatMoney(d.Currency, amount)
}

// Manager owns the expense, category and currency operations. Every
// mutation is awaited and followed by an explicit reload by the caller.
type Manager struct {
	client *backend.Client
	logger *log.Logger
}

func NewManager(client *backend.Client, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{client: client, logger: logger.WithComponent(log.ComponentManager)}
}

// Load fetches the user's expenses, categories, currencies and preference
// concurrently. The first failure cancels the rest and is returned.
func (m *Manager) Load(ctx context.Context, user core.User, view View) (*Dashboard, error) {
	d := &Dashboard{User: user}
	var pref core.Preference

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		expenses, err := m.client.Expenses.ListExpenses(gctx, user.ID)
		if err != nil {
			return fmt.Errorf("load expenses: %w", err)
		}
		d.Expenses = expenses
		return nil
	})
	g.Go(func() error {
		categories, err := m.client.Categories.ListCategories(gctx, user.ID)
		if err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		d.Categories = categories
		return nil
	})
	g.Go(func() error {
		currencies, err := m.client.Currencies.ListCurrencies(gctx)
		if err != nil {
			return fmt.Errorf("load currencies: %w", err)
		}
		d.Currencies = currencies
		return nil
	})
	g.Go(func() error {
		p, err := m.client.Preferences.GetPreference(gctx, user.ID)
		switch {
		case errors.Is(err, core.ErrNotFound):
			pref = core.Preference{UserID: user.ID, CurrencyCode: core.DefaultCurrencyCode}
		case err != nil:
			return fmt.Errorf("load preference: %w", err)
		default:
			pref = p
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		m.logger.ErrorContext(ctx, "Failed to load dashboard",
			log.FieldUserID, user.ID, log.FieldOperation, log.OpList, log.FieldError, err)
		return nil, err
	}

	code := pref.CurrencyCode
	if view.Currency != "" {
		code = view.Currency
	}
	d.Currency = core.ResolveCurrency(d.Currencies, code)
	d.Progress = core.BudgetProgress(d.Categories, d.Expenses)
	d.Total = core.Total(d.Expenses)

	if view.EditExpenseID != "" {
		if e, ok := core.FindExpense(d.Expenses, view.EditExpenseID); ok {
			d.EditingExpense = &e
		}
	}
	if view.EditCategoryID != "" {
		if c, ok := core.FindCategory(d.Categories, view.EditCategoryID); ok {
			d.EditingCategory = &c
		}
	}
	return d, nil
}

// AddExpense inserts a new expense. Incomplete input returns
// core.ErrIncomplete without touching the backend.
func (m *Manager) AddExpense(ctx context.Context, userID string, in core.ExpenseInput) (core.Expense, error) {
	if !in.Complete() {
		return core.Expense{}, core.ErrIncomplete
	}
	e, err := in.Expense(userID)
	if err != nil {
		return core.Expense{}, err
	}
	if err := m.requireCategory(ctx, userID, e.CategoryID); err != nil {
		return core.Expense{}, err
	}

	created, err := m.client.Expenses.InsertExpense(ctx, e)
	if err != nil {
		return core.Expense{}, m.fail(ctx, "insert expense", log.OpCreate, userID, err)
	}
	m.logger.InfoContext(ctx, "Expense added",
		log.FieldUserID, userID, log.FieldExpenseID, created.ID, log.FieldAmount, created.Amount.String())
	m.syncLedger(ctx, userID)
	return created, nil
}

func (m *Manager) UpdateExpense(ctx context.Context, userID, id string, in core.ExpenseInput) error {
	if !in.Complete() {
		return core.ErrIncomplete
	}
	e, err := in.Expense(userID)
	if err != nil {
		return err
	}
	if err := m.requireCategory(ctx, userID, e.CategoryID); err != nil {
		return err
	}
	e.ID = id

	if err := m.client.Expenses.UpdateExpense(ctx, e); err != nil {
		return m.fail(ctx, "update expense", log.OpUpdate, userID, err)
	}
	m.syncLedger(ctx, userID)
	return nil
}

func (m *Manager) DeleteExpense(ctx context.Context, userID, id string) error {
	if err := m.client.Expenses.DeleteExpense(ctx, userID, id); err != nil {
		return m.fail(ctx, "delete expense", log.OpDelete, userID, err)
	}
	m.syncLedger(ctx, userID)
	return nil
}

// AddCategory requires both a name and a budget.
func (m *Manager) AddCategory(ctx context.Context, userID string, in core.CategoryInput) (core.Category, error) {
	if !in.Complete() {
		return core.Category{}, core.ErrIncomplete
	}
	c, err := in.Category(userID)
	if err != nil {
		return core.Category{}, err
	}

	created, err := m.client.Categories.InsertCategory(ctx, c)
	if err != nil {
		return core.Category{}, m.fail(ctx, "insert category", log.OpCreate, userID, err)
	}
	m.logger.InfoContext(ctx, "Category added", log.FieldUserID, userID, log.FieldCategoryID, created.ID)
	m.syncLedger(ctx, userID)
	return created, nil
}

func (m *Manager) UpdateCategory(ctx context.Context, userID, id string, in core.CategoryInput) error {
	if !in.Complete() {
		return core.ErrIncomplete
	}
	c, err := in.Category(userID)
	if err != nil {
		return err
	}
	c.ID = id

	if err := m.client.Categories.UpdateCategory(ctx, c); err != nil {
		return m.fail(ctx, "update category", log.OpUpdate, userID, err)
	}
	m.syncLedger(ctx, userID)
	return nil
}

// DeleteCategory removes the category; expenses that referenced it become
// uncategorised.
func (m *Manager) DeleteCategory(ctx context.Context, userID, id string) error {
	if err := m.client.Categories.DeleteCategory(ctx, userID, id); err != nil {
		return m.fail(ctx, "delete category", log.OpDelete, userID, err)
	}
	m.syncLedger(ctx, userID)
	return nil
}

// ChangeCurrency persists the user's display currency. The resolved row is
// returned even when saving fails so the caller can keep the selection.
func (m *Manager) ChangeCurrency(ctx context.Context, userID, code string) (core.Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	cur, err := m.client.Currencies.GetCurrency(ctx, code)
	if errors.Is(err, core.ErrNotFound) {
		return core.Currency{}, core.ErrUnknownCurrency
	}
	if err != nil {
		return core.Currency{}, m.fail(ctx, "get currency", log.OpRead, userID, err)
	}

	if err := m.client.Preferences.UpsertPreference(ctx, core.Preference{UserID: userID, CurrencyCode: cur.Code}); err != nil {
		return cur, m.fail(ctx, "save currency preference", log.OpUpsert, userID, err)
	}
	m.logger.InfoContext(ctx, "Currency changed", log.FieldUserID, userID, log.FieldCurrency, cur.Code)
	m.syncLedger(ctx, userID)
	return cur, nil
}

func (m *Manager) requireCategory(ctx context.Context, userID, categoryID string) error {
	categories, err := m.client.Categories.ListCategories(ctx, userID)
	if err != nil {
		return m.fail(ctx, "load categories", log.OpList, userID, err)
	}
	if _, ok := core.FindCategory(categories, categoryID); !ok {
		return fmt.Errorf("category %s: %w", categoryID, core.ErrNotFound)
	}
	return nil
}

func (m *Manager) fail(ctx context.Context, what, op, userID string, err error) error {
	m.logger.ErrorContext(ctx, "Backend call failed",
		log.FieldOperation, op, log.FieldUserID, userID, log.FieldError, err)
	return fmt.Errorf("%s: %w", what, err)
}

// syncLedger announces the change to the worker. Publishing is best effort.
func (m *Manager) syncLedger(ctx context.Context, userID string) {
	if m.client.Ledger == nil {
		return
	}
	if err := m.client.Ledger.PublishLedgerSync(ctx, userID); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish ledger sync",
			log.FieldUserID, userID, log.FieldError, err)
	}
}
