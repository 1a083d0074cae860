package http

import (
	"bytes"
	"errors"
	"net/http"

	"pennywise/internal/core"
	"pennywise/internal/log"
	"pennywise/internal/services"
)

type dashboardPage struct {
	User  core.User
	D     *services.Dashboard
	Error string
}

func viewFromQuery(r *http.Request) services.View {
	q := r.URL.Query()
	return services.View{
		EditExpenseID:  q.Get("edit_expense"),
		EditCategoryID: q.Get("edit_category"),
		Currency:       q.Get("currency"),
	}
}

// handleDashboard renders the navigation shell around the manager.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	page := dashboardPage{User: user}
	d, err := s.manager.Load(r.Context(), user, viewFromQuery(r))
	if err != nil {
		page.Error = "Could not load your expenses. Refresh to try again."
		s.render(w, r, http.StatusInternalServerError, "dashboard.html", page)
		return
	}
	page.D = d
	s.render(w, r, http.StatusOK, "dashboard.html", page)
}

func (s *Server) handleManagerPartial(w http.ResponseWriter, r *http.Request) {
	s.respondManager(w, r, viewFromQuery(r), NewHTMXResponse())
}

// respondManager reloads everything and writes the manager partial with
// whatever triggers b already carries.
func (s *Server) respondManager(w http.ResponseWriter, r *http.Request, view services.View, b *HTMXResponseBuilder) {
	ctx := r.Context()
	user, _ := currentUser(ctx)
	d, err := s.manager.Load(ctx, user, view)
	if err != nil {
		InternalServerError("Could not load your expenses").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "manager", d); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Template execution failed",
			log.FieldComponent, log.ComponentTemplate,
			log.FieldOperation, log.OpRender,
			"template", "manager",
			log.FieldError, err)
		InternalServerError("Could not render the page").Write(w)
		return
	}
	b.BodyHTML(buf.String()).Write(w)
}

// mutationFailed maps manager errors to responses. Incomplete input is a
// silent no-op so the form keeps what the user typed.
func (s *Server) mutationFailed(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrIncomplete):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, core.ErrInvalidAmount):
		UnprocessableEntityError("Amounts must be non-negative numbers").Write(w)
	case errors.Is(err, core.ErrEmptyTitle):
		UnprocessableEntityError("Title is required").Write(w)
	case errors.Is(err, core.ErrEmptyName):
		UnprocessableEntityError("Category name is required").Write(w)
	case errors.Is(err, core.ErrUnknownCurrency):
		UnprocessableEntityError("Unknown currency").Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("That item no longer exists").Write(w)
	default:
		InternalServerError("Could not save your changes, please try again").Write(w)
	}
}

// mutated re-renders the manager after a successful change.
func (s *Server) mutated(w http.ResponseWriter, r *http.Request, p *RequestBodyParser, message string, resetForm bool) {
	s.appMetrics.mutations.Add(1)
	b := NewHTMXResponse().TriggerSuccessNotification(message)
	if resetForm {
		b.TriggerFormReset()
	}
	view := services.View{}
	if p != nil {
		view.Currency = p.Get("view_currency")
	}
	s.respondManager(w, r, view, b)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	user, _ := currentUser(r.Context())
	if _, err := s.manager.AddExpense(r.Context(), user.ID, expenseInput(p)); err != nil {
		s.mutationFailed(w, r, err)
		return
	}
	s.mutated(w, r, p, "Expense added", true)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	user, _ := currentUser(r.Context())
	if err := s.manager.UpdateExpense(r.Context(), user.ID, r.PathValue("id"), expenseInput(p)); err != nil {
		s.mutationFailed(w, r, err)
		return
	}
	s.mutated(w, r, p, "Expense updated", false)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	if err := s.manager.DeleteExpense(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.mutationFailed(w, r, err)
		return
	}
	s.mutated(w, r, nil, "Expense deleted", false)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	user, _ := currentUser(r.Context())
	if _, err := s.manager.AddCategory(r.Context(), user.ID, categoryInput(p)); err != nil {
		s.mutationFailed(w, r, err)
		return
	}
	s.mutated(w, r, p, "Category added", true)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	user, _ := currentUser(r.Context())
	if err := s.manager.UpdateCategory(r.Context(), user.ID, r.PathValue("id"), categoryInput(p)); err != nil {
		s.mutationFailed(w, r, err)
		return
	}
	s.mutated(w, r, p, "Category updated", false)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	if err := s.manager.DeleteCategory(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.mutationFailed(w, r, err)
		return
	}
	s.mutated(w, r, nil, "Category deleted", false)
}

// handleChangeCurrency keeps the selected currency on screen even when it
// could not be saved.
func (s *Server) handleChangeCurrency(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	user, _ := currentUser(r.Context())
	cur, err := s.manager.ChangeCurrency(r.Context(), user.ID, p.Get("currency"))
	switch {
	case errors.Is(err, core.ErrUnknownCurrency):
		s.mutationFailed(w, r, err)
	case err != nil && cur.Code != "":
		b := NewHTMXResponse().
			TriggerCurrencyChanged(cur.Code).
			TriggerErrorNotification("Could not save your currency preference")
		s.respondManager(w, r, services.View{Currency: cur.Code}, b)
	case err != nil:
		s.mutationFailed(w, r, err)
	default:
		s.appMetrics.mutations.Add(1)
		b := NewHTMXResponse().TriggerCurrencyChanged(cur.Code)
		s.respondManager(w, r, services.View{}, b)
	}
}
