package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"pennywise/internal/auth"
	"pennywise/internal/core"
	"pennywise/internal/log"
)

// Auth form modes.
const (
	modeSignIn = "signin"
	modeSignUp = "signup"
	modeReset  = "reset"
)

const resetConfirmation = "Check your email for the password reset link"

// loginErrors maps the codes /login?error= accepts to banner text. Unknown
// codes show nothing, so the banner never echoes caller-supplied text.
var loginErrors = map[string]string{
	"access_denied":             "Sign-in was cancelled at the provider",
	"provider_error":            "The sign-in provider returned an error",
	"provider_disabled":         auth.ErrProviderDisabled.Message,
	"invalid_email":             auth.ErrInvalidEmail.Message,
	"unexpected_failure":        auth.GenericMessage,
	auth.ErrLinkExpired.Code:    auth.ErrLinkExpired.Message,
	auth.ErrInvalidState.Code:   auth.ErrInvalidState.Message,
	auth.ErrOAuthFailed.Code:    auth.ErrOAuthFailed.Message,
	auth.ErrSessionMissing.Code: auth.ErrSessionMissing.Message,
}

// loginErrorCode picks the loginErrors key for a failed callback.
func loginErrorCode(err error) string {
	switch {
	case errors.Is(err, auth.ErrProviderDisabled):
		return "provider_disabled"
	case errors.Is(err, auth.ErrInvalidEmail):
		return "invalid_email"
	}
	var ae *auth.Error
	if errors.As(err, &ae) {
		if _, ok := loginErrors[ae.Code]; ok {
			return ae.Code
		}
	}
	return "unexpected_failure"
}

type authPage struct {
	Mode      string
	Email     string
	FullName  string
	Next      string
	Error     string
	Notice    string
	Providers []string
}

func (s *Server) newAuthPage(r *http.Request, mode string) authPage {
	return authPage{
		Mode:      mode,
		Next:      safeNext(r.URL.Query().Get("next")),
		Providers: s.client.Auth.Providers(),
	}
}

// renderAuth renders the form fragment for htmx requests and the full page
// otherwise.
func (s *Server) renderAuth(w http.ResponseWriter, r *http.Request, status int, page authPage) {
	name := "login.html"
	if isHTMX(r) {
		name = "auth_form"
	}
	s.render(w, r, status, name, page)
}

func authStatus(err error) int {
	var ae *auth.Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return http.StatusInternalServerError
}

func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, page authPage, op string, err error) {
	s.appMetrics.authErrors.Add(1)
	log.FromContext(r.Context()).WarnContext(r.Context(), "Auth request failed",
		log.FieldOperation, op,
		log.FieldErrorType, log.ErrorTypeAuth,
		log.FieldError, err)
	page.Error = auth.Message(err)
	s.renderAuth(w, r, authStatus(err), page)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := s.resolveSession(w, r); ok {
		redirect(w, r, "/")
		return
	}
	page := s.newAuthPage(r, modeSignIn)
	if r.URL.Query().Get("mode") == modeReset {
		page.Mode = modeReset
	}
	page.Error = loginErrors[r.URL.Query().Get("error")]
	s.renderAuth(w, r, http.StatusOK, page)
}

func (s *Server) handleSignUpPage(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := s.resolveSession(w, r); ok {
		redirect(w, r, "/")
		return
	}
	s.renderAuth(w, r, http.StatusOK, s.newAuthPage(r, modeSignUp))
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	creds := credentialsInput(p)
	page := s.newAuthPage(r, modeSignIn)
	page.Email = creds.Email
	page.Next = safeNext(p.Get("next"))

	session, err := s.client.Auth.SignInWithPassword(r.Context(), creds.Email, creds.Password)
	if err != nil {
		s.authFailed(w, r, page, log.OpSignIn, err)
		return
	}
	s.appMetrics.signIns.Add(1)
	s.setSession(w, session)
	redirect(w, r, page.Next)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	creds := credentialsInput(p)
	page := s.newAuthPage(r, modeSignUp)
	page.Email = creds.Email
	page.FullName = creds.FullName

	session, err := s.client.Auth.SignUp(r.Context(), creds.Email, creds.Password, creds.FullName)
	if err != nil {
		s.authFailed(w, r, page, log.OpSignUp, err)
		return
	}
	s.appMetrics.signIns.Add(1)
	s.setSession(w, session)
	redirect(w, r, "/")
}

// handleSignOut revokes the session server-side and always clears cookies.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(accessCookie); err == nil && c.Value != "" {
		if err := s.client.Auth.SignOut(r.Context(), c.Value); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Sign-out failed",
				log.FieldOperation, log.OpSignOut, log.FieldError, err)
		}
	}
	s.clearSession(w)
	redirect(w, r, "/")
}

func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	next := safeNext(r.URL.Query().Get("next"))
	target, err := s.client.Auth.SignInWithOAuth(r.Context(), provider, next)
	if err != nil {
		page := s.newAuthPage(r, modeSignIn)
		log.FromContext(r.Context()).WarnContext(r.Context(), "OAuth sign-in unavailable",
			log.FieldProvider, provider, log.FieldError, err)
		s.appMetrics.authErrors.Add(1)
		page.Error = auth.Message(err)
		s.render(w, r, authStatus(err), "login.html", page)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// handleAuthCallback finishes both OAuth sign-ins (code and state) and
// password recovery links (token_hash with type=recovery).
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()
	logger := log.FromContext(ctx)

	if providerErr := q.Get("error"); providerErr != "" || q.Get("error_description") != "" {
		logger.WarnContext(ctx, "Provider returned an error",
			log.FieldError, providerErr,
			"description", q.Get("error_description"))
		code := "provider_error"
		if providerErr == "access_denied" {
			code = providerErr
		}
		s.loginWithError(w, r, code)
		return
	}

	var (
		session core.Session
		next    = q.Get("next")
		err     error
	)
	switch {
	case q.Get("type") == core.TokenRecovery:
		session, err = s.client.Auth.VerifyRecovery(ctx, q.Get("token_hash"))
		if next == "" {
			next = "/reset-password"
		}
	case q.Get("code") != "":
		var stateNext string
		session, stateNext, err = s.client.Auth.ExchangeCodeForSession(ctx, q.Get("code"), q.Get("state"))
		if stateNext != "" {
			next = stateNext
		}
	default:
		err = auth.ErrSessionMissing
	}
	if err != nil {
		s.appMetrics.authErrors.Add(1)
		logger.WarnContext(ctx, "Auth callback failed", log.FieldErrorType, log.ErrorTypeAuth, log.FieldError, err)
		s.loginWithError(w, r, loginErrorCode(err))
		return
	}

	s.appMetrics.signIns.Add(1)
	s.setSession(w, session)
	http.Redirect(w, r, safeNext(next), http.StatusFound)
}

func (s *Server) loginWithError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/login?"+url.Values{"error": {code}}.Encode(), http.StatusFound)
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	page := s.newAuthPage(r, modeReset)
	page.Email = p.Get("email")

	redirectTo := s.siteURL + "/auth/callback?" + url.Values{"next": {"/reset-password"}}.Encode()
	if err := s.client.Auth.ResetPasswordForEmail(r.Context(), page.Email, redirectTo); err != nil {
		s.authFailed(w, r, page, log.OpReset, err)
		return
	}
	page.Notice = resetConfirmation
	s.renderAuth(w, r, http.StatusOK, page)
}

type resetPasswordPage struct {
	User   core.User
	Error  string
	Notice string
}

func (s *Server) handleResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	s.render(w, r, http.StatusOK, "reset_password.html", resetPasswordPage{User: user})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	p, errResp := parseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	ctx := r.Context()
	user, _ := currentUser(ctx)
	page := resetPasswordPage{User: user}

	password := p.GetRaw("password")
	if password != p.GetRaw("confirm_password") {
		page.Error = "Passwords do not match"
		s.render(w, r, http.StatusUnprocessableEntity, s.resetTemplate(r), page)
		return
	}
	if _, err := s.client.Auth.UpdatePassword(ctx, accessToken(ctx), password); err != nil {
		s.appMetrics.authErrors.Add(1)
		log.FromContext(ctx).WarnContext(ctx, "Password update failed",
			log.FieldOperation, log.OpReset, log.FieldError, err)
		page.Error = auth.Message(err)
		s.render(w, r, authStatus(err), s.resetTemplate(r), page)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Password updated", log.FieldOperation, log.OpReset)
	redirect(w, r, "/")
}

func (s *Server) resetTemplate(r *http.Request) string {
	if isHTMX(r) {
		return "reset_form"
	}
	return "reset_password.html"
}

// identityEvent is the payload of an auth event on the SSE stream.
type identityEvent struct {
	Type        core.AuthEventType `json:"type"`
	DisplayName string             `json:"display_name,omitempty"`
	Email       string             `json:"email,omitempty"`
}

const sseHeartbeat = 25 * time.Second

// handleAuthEvents streams the signed-in user's auth events. The
// subscription lives exactly as long as the request.
func (s *Server) handleAuthEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := currentUser(ctx)
	logger := log.FromContext(ctx)
	rc := http.NewResponseController(w)

	events := make(chan core.AuthEvent, 8)
	unsubscribe := s.client.Auth.OnAuthStateChange(ctx, func(ev core.AuthEvent) {
		if ev.UserID != user.ID {
			return
		}
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	s.appMetrics.streams.Add(1)
	defer s.appMetrics.streams.Add(-1)

	_ = rc.SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		logger.ErrorContext(ctx, "Event stream cannot flush", log.FieldError, err)
		return
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
		case ev := <-events:
			payload := identityEvent{Type: ev.Type}
			if ev.Type != core.AuthSignedOut {
				payload.DisplayName = ev.User.DisplayName()
				payload.Email = ev.User.Email
			}
			data, err := json.Marshal(payload)
			if err != nil {
				continue
			}
			logger.DebugContext(ctx, "Streaming auth event", log.FieldAuthEvent, string(ev.Type))
			fmt.Fprintf(w, "event: auth\ndata: %s\n\n", data)
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
