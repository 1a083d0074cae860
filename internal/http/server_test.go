package http

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"pennywise/internal/auth"
	"pennywise/internal/backend"
	"pennywise/internal/core"
	"pennywise/internal/storage/memory"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "analytical"
	testSiteURL  = "http://pennywise.test"
)

type captureNotifier struct {
	mu     sync.Mutex
	resets []core.PasswordReset
}

func (n *captureNotifier) NotifyPasswordReset(_ context.Context, r core.PasswordReset) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, r)
	return nil
}

func (n *captureNotifier) last(t *testing.T) core.PasswordReset {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.resets)
	return n.resets[len(n.resets)-1]
}

type failingPreferences struct {
	backend.PreferenceTable
}

func (failingPreferences) UpsertPreference(context.Context, core.Preference) error {
	return errors.New("connection reset")
}

type testEnv struct {
	srv      *Server
	store    *memory.Store
	auth     *auth.Service
	client   *backend.Client
	notifier *captureNotifier
}

func newTestEnv(t *testing.T, providers map[string]auth.ProviderConfig) *testEnv {
	t.Helper()
	store := memory.New()
	var tick atomic.Int64
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Second)
	})

	notifier := &captureNotifier{}
	svc, err := auth.NewService(store, notifier, auth.Config{
		SiteURL:    testSiteURL,
		JWTSecret:  "test-secret",
		BcryptCost: bcrypt.MinCost,
		Providers:  providers,
	})
	require.NoError(t, err)

	client := backend.NewClient(store, svc)
	srv, err := NewServer(Options{
		Client:             client,
		SiteURL:            testSiteURL,
		RateLimitPerMinute: 1000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testEnv{srv: srv, store: store, auth: svc, client: client, notifier: notifier}
}

func (e *testEnv) signUp(t *testing.T) core.Session {
	t.Helper()
	session, err := e.auth.SignUp(context.Background(), testEmail, testPassword, "Ada Lovelace")
	require.NoError(t, err)
	return session
}

type reqOpts struct {
	form    url.Values
	session *core.Session
	htmx    bool
	cookies []*http.Cookie
}

func (e *testEnv) do(t *testing.T, method, target string, o reqOpts) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if o.form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(o.form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if o.htmx {
		req.Header.Set("HX-Request", "true")
	}
	if o.session != nil {
		req.AddCookie(&http.Cookie{Name: accessCookie, Value: o.session.AccessToken})
		req.AddCookie(&http.Cookie{Name: refreshCookie, Value: o.session.RefreshToken})
	}
	for _, c := range o.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestGuardedRoutesRedirectToLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, target := range []string{"/", "/dashboard", "/invoice?currency=EUR", "/invoice/pdf", "/reset-password"} {
		t.Run(target, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, target, reqOpts{})
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/login", rec.Header().Get("Location"))
		})
	}

	rec := env.do(t, http.MethodGet, "/ui/manager", reqOpts{htmx: true})
	assert.Equal(t, "/login", rec.Header().Get("HX-Redirect"))

	rec = env.do(t, http.MethodPost, "/expenses", reqOpts{form: url.Values{"title": {"x"}}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestLoginPage(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/login", reqOpts{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/login"`)
	assert.NotContains(t, rec.Body.String(), "Continue with")
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = env.do(t, http.MethodGet, "/login?mode=reset", reqOpts{})
	assert.Contains(t, rec.Body.String(), `action="/auth/reset"`)

	session := env.signUp(t)
	rec = env.do(t, http.MethodGet, "/login", reqOpts{session: &session})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestSignIn(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signUp(t)

	rec := env.do(t, http.MethodPost, "/login", reqOpts{
		form: url.Values{"email": {testEmail}, "password": {"wrong-password"}},
		htmx: true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid login credentials")
	assert.Nil(t, cookieNamed(rec, accessCookie))

	rec = env.do(t, http.MethodPost, "/login", reqOpts{
		form: url.Values{"email": {testEmail}, "password": {testPassword}},
		htmx: true,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("HX-Redirect"))
	access := cookieNamed(rec, accessCookie)
	require.NotNil(t, access)
	assert.True(t, access.HttpOnly)
	assert.NotNil(t, cookieNamed(rec, refreshCookie))

	rec = env.do(t, http.MethodPost, "/login", reqOpts{
		form: url.Values{"email": {testEmail}, "password": {testPassword}, "next": {"https://evil.example"}},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestSignUp(t *testing.T) {
	env := newTestEnv(t, nil)

	form := url.Values{"email": {testEmail}, "password": {testPassword}, "full_name": {"Ada Lovelace"}}
	rec := env.do(t, http.MethodPost, "/signup", reqOpts{form: form})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.NotNil(t, cookieNamed(rec, accessCookie))

	rec = env.do(t, http.MethodPost, "/signup", reqOpts{form: form, htmx: true})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "User already registered")

	form.Set("email", "grace@example.com")
	form.Set("password", "123")
	rec = env.do(t, http.MethodPost, "/signup", reqOpts{form: form, htmx: true})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Password should be at least 6 characters")
}

func TestDashboardRendersIdentity(t *testing.T) {
	env := newTestEnv(t, nil)
	session := env.signUp(t)

	rec := env.do(t, http.MethodGet, "/dashboard", reqOpts{session: &session})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Ada Lovelace")
	assert.Contains(t, body, "No expenses yet.")
	assert.Contains(t, body, `data-currency="USD"`)
	assert.Contains(t, body, `hx-confirm="Sign out of Pennywise?"`)

	rec = env.do(t, http.MethodGet, "/", reqOpts{session: &session})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExpiredAccessTokenIsRefreshed(t *testing.T) {
	env := newTestEnv(t, nil)
	session := env.signUp(t)

	rec := env.do(t, http.MethodGet, "/dashboard", reqOpts{
		cookies: []*http.Cookie{
			{Name: accessCookie, Value: "not-a-jwt"},
			{Name: refreshCookie, Value: session.RefreshToken},
		},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	renewed := cookieNamed(rec, accessCookie)
	require.NotNil(t, renewed)
	assert.NotEmpty(t, renewed.Value)

	// refresh tokens rotate, so the old one is spent
	rec = env.do(t, http.MethodGet, "/dashboard", reqOpts{
		cookies: []*http.Cookie{{Name: refreshCookie, Value: session.RefreshToken}},
	})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestSignOut(t *testing.T) {
	env := newTestEnv(t, nil)
	session := env.signUp(t)

	rec := env.do(t, http.MethodPost, "/logout", reqOpts{session: &session, htmx: true})
	assert.Equal(t, "/", rec.Header().Get("HX-Redirect"))
	cleared := cookieNamed(rec, accessCookie)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	rec = env.do(t, http.MethodGet, "/dashboard", reqOpts{
		cookies: []*http.Cookie{{Name: refreshCookie, Value: session.RefreshToken}},
	})
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestExpenseAndCategoryMutations(t *testing.T) {
	env := newTestEnv(t, nil)
	session := env.signUp(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodPost, "/categories", reqOpts{
		session: &session, htmx: true,
		form: url.Values{"name": {"Food"}, "budget": {"20"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("HX-Trigger"), EventFormReset)
	assert.Contains(t, rec.Body.String(), "Food")

	categories, err := env.store.ListCategories(ctx, session.User.ID)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	food := categories[0]

	rec = env.do(t, http.MethodPost, "/expenses", reqOpts{
		session: &session, htmx: true,
		form: url.Values{"title": {"Dinner"}, "amount": {"12.50"}, "category_id": {food.ID}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Dinner")
	assert.Contains(t, rec.Body.String(), "$12.50 USD")
	assert.NotContains(t, rec.Body.String(), "Over budget")

	t.Run("incomplete input is ignored", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/expenses", reqOpts{
			session: &session, htmx: true,
			form: url.Values{"title": {"Snack"}, "category_id": {food.ID}},
		})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		expenses, err := env.store.ListExpenses(ctx, session.User.ID)
		require.NoError(t, err)
		assert.Len(t, expenses, 1)
	})

	t.Run("invalid amount", func(t *testing.T) {
		for _, amount := range []string{"lots", "1e3000000", "1000000000000"} {
			rec := env.do(t, http.MethodPost, "/expenses", reqOpts{
				session: &session, htmx: true,
				form: url.Values{"title": {"Snack"}, "amount": {amount}, "category_id": {food.ID}},
			})
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "amount %q", amount)
			assert.Contains(t, rec.Header().Get("HX-Trigger"), EventNotification)
		}

		rec := env.do(t, http.MethodPost, "/categories", reqOpts{
			session: &session, htmx: true,
			form: url.Values{"name": {"Huge"}, "budget": {"9e999999999"}},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unknown category", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/expenses", reqOpts{
			session: &session, htmx: true,
			form: url.Values{"title": {"Snack"}, "amount": {"2"}, "category_id": {"missing"}},
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	expenses, err := env.store.ListExpenses(ctx, session.User.ID)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	dinner := expenses[0]

	rec = env.do(t, http.MethodGet, "/ui/manager?edit_expense="+dinner.ID, reqOpts{session: &session, htmx: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hx-put="/expenses/`+dinner.ID+`"`)

	rec = env.do(t, http.MethodPut, "/expenses/"+dinner.ID, reqOpts{
		session: &session, htmx: true,
		form: url.Values{"title": {"Dinner"}, "amount": {"25"}, "category_id": {food.ID}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Over budget")
	assert.Contains(t, rec.Body.String(), "width: 100.00%")

	rec = env.do(t, http.MethodPut, "/categories/"+food.ID, reqOpts{
		session: &session, htmx: true,
		form: url.Values{"name": {"Food"}, "budget": {"25"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Over budget", "spend equal to budget is not over")

	rec = env.do(t, http.MethodDelete, "/categories/"+food.ID, reqOpts{session: &session, htmx: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Uncategorised")

	rec = env.do(t, http.MethodDelete, "/expenses/"+dinner.ID, reqOpts{session: &session, htmx: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No expenses yet.")
}

func TestChangeCurrency(t *testing.T) {
	env := newTestEnv(t, nil)
	session := env.signUp(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodPost, "/preferences/currency", reqOpts{
		session: &session, htmx: true,
		form: url.Values{"currency": {"EUR"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("HX-Trigger"), EventCurrencyChanged)
	assert.Contains(t, rec.Body.String(), `data-currency="EUR"`)
	assert.Contains(t, rec.Body.String(), "€0.00 EUR")
	assert.Contains(t, rec.Body.String(), `href="/invoice?currency=EUR"`)
	assert.Contains(t, rec.Body.String(), "EUR (€) - Euro")

	pref, err := env.store.GetPreference(ctx, session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "EUR", pref.CurrencyCode)

	rec = env.do(t, http.MethodPost, "/preferences/currency", reqOpts{
		session: &session, htmx: true,
		form: url.Values{"currency": {"XYZ"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestChangeCurrencyKeepsSelectionWhenSaveFails(t *testing.T) {
	env := newTestEnv(t, nil)
	session := env.signUp(t)
	env.client.Preferences = failingPreferences{PreferenceTable: env.store}

	rec := env.do(t, http.MethodPost, "/preferences/currency", reqOpts{
		session: &session, htmx: true,
		form: url.Values{"currency": {"GBP"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-currency="GBP"`)
	assert.Contains(t, rec.Header().Get("HX-Trigger"), "Could not save your currency preference")

	_, err := env.store.GetPreference(context.Background(), session.User.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func seedInvoice(t *testing.T, env *testEnv, userID string) {
	t.Helper()
	ctx := context.Background()
	food, err := env.store.InsertCategory(ctx, core.Category{UserID: userID, Name: "Food", Budget: decimal.NewFromInt(100)})
	require.NoError(t, err)
	_, err = env.store.InsertExpense(ctx, core.Expense{UserID: userID, Title: "Parking", Amount: decimal.RequireFromString("7.25")})
	require.NoError(t, err)
	_, err = env.store.InsertExpense(ctx, core.Expense{UserID: userID, Title: "Dinner", Amount: decimal.RequireFromString("12.50"), CategoryID: food.ID})
	require.NoError(t, err)
}

func TestInvoice(t *testing.T) {
	env := newTestEnv(t, nil)
	session := env.signUp(t)
	seedInvoice(t, env, session.User.ID)

	tests := []struct {
		name  string
		query string
		total string
	}{
		{name: "selected currency", query: "?currency=EUR", total: "€19.75 EUR"},
		{name: "defaults to USD", query: "", total: "$19.75 USD"},
		{name: "unknown currency falls back to USD", query: "?currency=XYZ", total: "$19.75 USD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/invoice"+tt.query, reqOpts{session: &session})
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), `<th class="num" id="invoice-total">`+tt.total+`</th>`)
		})
	}

	rec := env.do(t, http.MethodGet, "/invoice?currency=EUR", reqOpts{session: &session})
	body := rec.Body.String()
	assert.Contains(t, body, "€12.50 EUR")
	assert.Less(t, strings.Index(body, "Dinner"), strings.Index(body, "Parking"), "newest first")
	assert.Contains(t, body, `href="/">Back to Dashboard</a>`)
}

func TestInvoiceWithoutExpenses(t *testing.T) {
	env := newTestEnv(t, nil)
	session := env.signUp(t)

	rec := env.do(t, http.MethodGet, "/invoice?currency=GBP", reqOpts{session: &session})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "No expenses recorded.")
	assert.Contains(t, body, `<th class="num" id="invoice-total">£0.00 GBP</th>`)
	assert.Contains(t, body, `href="/">Back to Dashboard</a>`)
}

func TestInvoicePDF(t *testing.T) {
	env := newTestEnv(t, nil)
	session := env.signUp(t)
	seedInvoice(t, env, session.User.ID)

	rec := env.do(t, http.MethodGet, "/invoice/pdf?currency=EUR", reqOpts{session: &session})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "invoice-EUR.pdf")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
}

func TestPasswordRecoveryFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signUp(t)

	rec := env.do(t, http.MethodPost, "/auth/reset", reqOpts{form: url.Values{"email": {testEmail}}, htmx: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), resetConfirmation)

	link, err := url.Parse(env.notifier.last(t).Link)
	require.NoError(t, err)
	assert.Equal(t, "/auth/callback", link.Path)
	assert.Equal(t, "/reset-password", link.Query().Get("next"))

	rec = env.do(t, http.MethodGet, link.RequestURI(), reqOpts{})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/reset-password", rec.Header().Get("Location"))
	access := cookieNamed(rec, accessCookie)
	require.NotNil(t, access)
	recovered := &core.Session{AccessToken: access.Value}

	rec = env.do(t, http.MethodGet, "/reset-password", reqOpts{session: recovered})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/reset-password", reqOpts{
		session: recovered, htmx: true,
		form: url.Values{"password": {"new-secret"}, "confirm_password": {"other"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Passwords do not match")

	rec = env.do(t, http.MethodPost, "/reset-password", reqOpts{
		session: recovered,
		form:    url.Values{"password": {"new-secret"}, "confirm_password": {"new-secret"}},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	_, err = env.auth.SignInWithPassword(context.Background(), testEmail, "new-secret")
	assert.NoError(t, err)

	// recovery links are single use
	rec = env.do(t, http.MethodGet, link.RequestURI(), reqOpts{})
	assert.Equal(t, "/login?error=otp_expired", rec.Header().Get("Location"))
}

func TestResetRequestForUnknownEmailStillConfirms(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/auth/reset", reqOpts{form: url.Values{"email": {"nobody@example.com"}}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), resetConfirmation)

	rec = env.do(t, http.MethodPost, "/auth/reset", reqOpts{form: url.Values{"email": {"not-an-email"}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthCallbackErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		query  string
		code   string
		banner string
	}{
		{name: "provider denied", query: "?error=access_denied&error_description=User+denied+access", code: "access_denied", banner: "Sign-in was cancelled at the provider"},
		{name: "other provider error", query: "?error=server_error", code: "provider_error", banner: "The sign-in provider returned an error"},
		{name: "expired recovery link", query: "?type=recovery&token_hash=bogus", code: "otp_expired", banner: "Email link is invalid or has expired"},
		{name: "bad oauth state", query: "?code=abc&state=forged", code: "bad_oauth_state", banner: "OAuth state parameter is invalid or expired"},
		{name: "nothing to exchange", query: "?next=/dashboard", code: "session_not_found", banner: "Auth session missing!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/auth/callback"+tt.query, reqOpts{})
			require.Equal(t, http.StatusFound, rec.Code)
			loc, err := url.Parse(rec.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "/login", loc.Path)
			assert.Equal(t, tt.code, loc.Query().Get("error"))

			rec = env.do(t, http.MethodGet, loc.RequestURI(), reqOpts{})
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.banner)
			assert.NotContains(t, rec.Body.String(), "User denied access")
		})
	}

	t.Run("free text is not echoed", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/login?error=Call+support+at+555-0100", reqOpts{})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "555-0100")
		assert.NotContains(t, rec.Body.String(), `role="alert"`)
	})
}

func TestLoginErrorCode(t *testing.T) {
	assert.Equal(t, "provider_disabled", loginErrorCode(auth.ErrProviderDisabled))
	assert.Equal(t, "invalid_email", loginErrorCode(auth.ErrInvalidEmail))
	assert.Equal(t, "bad_oauth_callback", loginErrorCode(auth.ErrOAuthFailed))
	assert.Equal(t, "unexpected_failure", loginErrorCode(errors.New("database is locked")))
	assert.Equal(t, "unexpected_failure", loginErrorCode(auth.ErrInvalidCredentials))
	for code := range loginErrors {
		assert.NotEmpty(t, loginErrors[code], code)
	}
}

func TestOAuthStart(t *testing.T) {
	env := newTestEnv(t, map[string]auth.ProviderConfig{
		"github": {ClientID: "client-id", ClientSecret: "client-secret"},
	})

	rec := env.do(t, http.MethodGet, "/login", reqOpts{})
	assert.Contains(t, rec.Body.String(), "Continue with GitHub")

	rec = env.do(t, http.MethodGet, "/auth/oauth/github?next=/invoice", reqOpts{})
	require.Equal(t, http.StatusFound, rec.Code)
	target, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "github.com", target.Host)
	assert.Equal(t, "client-id", target.Query().Get("client_id"))
	assert.Equal(t, testSiteURL+"/auth/callback", target.Query().Get("redirect_uri"))
	assert.NotEmpty(t, target.Query().Get("state"))

	rec = env.do(t, http.MethodGet, "/auth/oauth/google", reqOpts{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "provider is not enabled")
}

func TestAuthEventsStream(t *testing.T) {
	env := newTestEnv(t, nil)
	session := env.signUp(t)

	ts := httptest.NewServer(env.srv.Handler)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/auth/events", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: accessCookie, Value: session.AccessToken})

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)
	require.Equal(t, 1, env.auth.Hub().Len())

	// events for other users are not streamed
	other, err := env.auth.SignUp(context.Background(), "grace@example.com", "compiler", "Grace Hopper")
	require.NoError(t, err)
	_, err = env.auth.UpdatePassword(context.Background(), other.AccessToken, "compiler2")
	require.NoError(t, err)

	_, err = env.auth.UpdatePassword(context.Background(), session.AccessToken, "analytical2")
	require.NoError(t, err)

	var lines []string
	for len(lines) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	assert.Equal(t, "event: auth", lines[0])
	assert.Contains(t, lines[1], `"type":"USER_UPDATED"`)
	assert.Contains(t, lines[1], `"display_name":"Ada Lovelace"`)

	cancel()
	assert.Eventually(t, func() bool { return env.auth.Hub().Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHealthReadyMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/healthz", reqOpts{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = env.do(t, http.MethodGet, "/readyz", reqOpts{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)

	rec = env.do(t, http.MethodGet, "/metrics", reqOpts{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), "auth_event_streams 0")

	rec = env.do(t, http.MethodGet, "/static/app.css", reqOpts{})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMutatingRequestsAreRateLimited(t *testing.T) {
	env := newTestEnv(t, nil)
	srv, err := NewServer(Options{Client: env.client, RateLimitPerMinute: 2})
	require.NoError(t, err)
	defer srv.Shutdown(context.Background())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=nobody%40example.com&password=x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)

	// reads are never limited
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
