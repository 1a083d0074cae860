package http

import (
	"net/http"
	"strconv"
	"time"

	"pennywise/internal/core"
	"pennywise/internal/log"
	"pennywise/internal/report"
)

type invoicePage struct {
	User    core.User
	Invoice core.Invoice
	Issued  time.Time
	Error   string
}

func (s *Server) handleInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := currentUser(ctx)
	page := invoicePage{User: user, Issued: time.Now()}

	inv, err := s.invoices.Build(ctx, user.ID, r.URL.Query().Get("currency"))
	if err != nil {
		page.Error = "Could not load your expenses. Refresh to try again."
		s.render(w, r, http.StatusInternalServerError, "invoice.html", page)
		return
	}
	page.Invoice = inv
	s.render(w, r, http.StatusOK, "invoice.html", page)
}

func (s *Server) handleInvoicePDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := currentUser(ctx)

	inv, err := s.invoices.Build(ctx, user.ID, r.URL.Query().Get("currency"))
	if err != nil {
		http.Error(w, "could not load expenses", http.StatusInternalServerError)
		return
	}
	pdf, err := report.InvoicePDF(inv, user, time.Now())
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Invoice PDF rendering failed",
			log.FieldComponent, log.ComponentInvoice,
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
		http.Error(w, "could not render invoice", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="invoice-`+inv.Currency.Code+`.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	_, _ = w.Write(pdf)
}
