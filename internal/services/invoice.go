package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pennywise/internal/backend"
	"pennywise/internal/core"
	"pennywise/internal/log"
)

// InvoiceService assembles a user's expenses into an invoice in a given
// currency. Amounts are labelled, not converted.
type InvoiceService struct {
	client *backend.Client
	logger *log.Logger
}

func NewInvoiceService(client *backend.Client, logger *log.Logger) *InvoiceService {
	if logger == nil {
		logger = log.Discard()
	}
	return &InvoiceService{client: client, logger: logger.WithComponent(log.ComponentInvoice)}
}

// Build defaults an empty code to USD. When the currency lookup fails the
// invoice still renders with the USD symbol and name.
func (s *InvoiceService) Build(ctx context.Context, userID, code string) (core.Invoice, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = core.DefaultCurrencyCode
	}

	cur, err := s.client.Currencies.GetCurrency(ctx, code)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			s.logger.WarnContext(ctx, "Currency lookup failed, using default",
				log.FieldCurrency, code, log.FieldError, err)
		}
		cur = core.DefaultCurrency
	}

	expenses, err := s.client.Expenses.ListExpenses(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load invoice expenses",
			log.FieldUserID, userID, log.FieldError, err)
		return core.Invoice{}, fmt.Errorf("load expenses: %w", err)
	}
	return core.BuildInvoice(cur, expenses), nil
}

// BuildForPreference uses the user's saved currency, or USD.
func (s *InvoiceService) BuildForPreference(ctx context.Context, userID string) (core.Invoice, error) {
	code := core.DefaultCurrencyCode
	pref, err := s.client.Preferences.GetPreference(ctx, userID)
	switch {
	case err == nil:
		code = pref.CurrencyCode
	case !errors.Is(err, core.ErrNotFound):
		return core.Invoice{}, fmt.Errorf("load preference: %w", err)
	}
	return s.Build(ctx, userID, code)
}
