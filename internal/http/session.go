package http

import (
	"context"
	"net/http"
	"time"

	"pennywise/internal/auth"
	"pennywise/internal/core"
	"pennywise/internal/log"
)

const (
	accessCookie  = "pw_access"
	refreshCookie = "pw_refresh"
)

type ctxKey int

const (
	userKey ctxKey = iota
	accessTokenKey
)

// currentUser returns the user the session guard attached to ctx.
func currentUser(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userKey).(core.User)
	return u, ok
}

func accessToken(ctx context.Context) string {
	t, _ := ctx.Value(accessTokenKey).(string)
	return t
}

func (s *Server) setSession(w http.ResponseWriter, session core.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookie,
		Value:    session.AccessToken,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    session.RefreshToken,
		Path:     "/",
		MaxAge:   int(s.refreshTTL / time.Second),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSession(w http.ResponseWriter) {
	for _, name := range []string{accessCookie, refreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// resolveSession returns the signed-in user for r. An expired access token
// is replaced through the refresh cookie, in which case new cookies are
// written to w.
func (s *Server) resolveSession(w http.ResponseWriter, r *http.Request) (core.User, string, bool) {
	ctx := r.Context()
	if c, err := r.Cookie(accessCookie); err == nil && c.Value != "" {
		user, err := s.client.Auth.GetUser(ctx, c.Value)
		if err == nil {
			return user, c.Value, true
		}
		log.FromContext(ctx).DebugContext(ctx, "Access token rejected", log.FieldError, err)
	}

	c, err := r.Cookie(refreshCookie)
	if err != nil || c.Value == "" {
		return core.User{}, "", false
	}
	session, err := s.client.Auth.RefreshSession(ctx, c.Value)
	if err != nil {
		log.FromContext(ctx).InfoContext(ctx, "Session refresh failed",
			log.FieldOperation, log.OpRefresh, log.FieldError, auth.Message(err))
		return core.User{}, "", false
	}
	s.setSession(w, session)
	return session.User, session.AccessToken, true
}

// requireUser is the session guard. Visitors without a valid session have
// their cookies cleared and are sent to /login.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, token, ok := s.resolveSession(w, r)
		if !ok {
			s.clearSession(w)
			redirect(w, r, "/login")
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, accessTokenKey, token)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, user.ID))
		next(w, r.WithContext(ctx))
	}
}
