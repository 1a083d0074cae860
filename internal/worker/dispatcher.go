package worker

import (
	"context"
	"fmt"

	"pennywise/internal/amqp"
	"pennywise/internal/backend"
	"pennywise/internal/log"
	"pennywise/internal/services"
	"pennywise/internal/sheets"
)

// Dispatcher routes queue messages to their side effects.
type Dispatcher struct {
	mailer     Mailer
	ledger     sheets.LedgerWriter
	invoices   *services.InvoiceService
	categories backend.CategoryTable
	logger     *log.Logger
}

func NewDispatcher(client *backend.Client, ledger sheets.LedgerWriter, mailer Mailer, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Discard()
	}
	if mailer == nil {
		mailer = NewLogMailer(logger)
	}
	return &Dispatcher{
		mailer:     mailer,
		ledger:     ledger,
		invoices:   services.NewInvoiceService(client, logger),
		categories: client.Categories,
		logger:     logger.WithComponent(log.ComponentWorker),
	}
}

// Handle is an amqp consumer handler. A returned error requeues the message.
func (d *Dispatcher) Handle(ctx context.Context, msg *amqp.Message) error {
	switch msg.Type {
	case amqp.TypeLedgerSync:
		return d.syncLedger(ctx, msg.UserID)
	case amqp.TypePasswordReset:
		if err := d.mailer.SendPasswordReset(ctx, msg.PasswordReset()); err != nil {
			d.logger.ErrorContext(ctx, "Failed to send password reset",
				log.FieldUserID, msg.UserID, log.FieldError, err)
			return fmt.Errorf("send password reset: %w", err)
		}
		return nil
	default:
		d.logger.WarnContext(ctx, "Ignoring unknown message type", log.FieldMessageType, msg.Type)
		return nil
	}
}

func (d *Dispatcher) syncLedger(ctx context.Context, userID string) error {
	if d.ledger == nil {
		d.logger.DebugContext(ctx, "No ledger writer configured, skipping sync", log.FieldUserID, userID)
		return nil
	}

	inv, err := d.invoices.BuildForPreference(ctx, userID)
	if err != nil {
		return fmt.Errorf("build ledger: %w", err)
	}
	categories, err := d.categories.ListCategories(ctx, userID)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}

	if err := d.ledger.WriteLedger(ctx, sheets.NewLedger(userID, inv, categories)); err != nil {
		d.logger.ErrorContext(ctx, "Failed to write ledger",
			log.FieldUserID, userID,
			log.FieldOperation, log.OpSync,
			log.FieldError, err)
		return fmt.Errorf("write ledger: %w", err)
	}
	d.logger.InfoContext(ctx, "Ledger synced",
		log.FieldUserID, userID,
		log.FieldCurrency, inv.Currency.Code,
		"rows", len(inv.Lines))
	return nil
}
