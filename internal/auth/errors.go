package auth

import (
	"errors"
	"net/http"
)

// Error is an auth failure whose Message is safe to show to the user as-is.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string { return e.Message }

var (
	ErrInvalidCredentials = &Error{Code: "invalid_credentials", Message: "Invalid login credentials", Status: http.StatusBadRequest}
	ErrUserExists         = &Error{Code: "user_already_exists", Message: "User already registered", Status: http.StatusUnprocessableEntity}
	ErrWeakPassword       = &Error{Code: "weak_password", Message: "Password should be at least 6 characters", Status: http.StatusUnprocessableEntity}
	ErrMissingEmail       = &Error{Code: "validation_failed", Message: "missing email or phone", Status: http.StatusBadRequest}
	ErrInvalidEmail       = &Error{Code: "validation_failed", Message: "Unable to validate email address: invalid format", Status: http.StatusBadRequest}
	ErrProviderDisabled   = &Error{Code: "validation_failed", Message: "Unsupported provider: provider is not enabled", Status: http.StatusBadRequest}
	ErrSessionMissing     = &Error{Code: "session_not_found", Message: "Auth session missing!", Status: http.StatusUnauthorized}
	ErrInvalidRefresh     = &Error{Code: "refresh_token_not_found", Message: "Invalid Refresh Token: Refresh Token Not Found", Status: http.StatusUnauthorized}
	ErrLinkExpired        = &Error{Code: "otp_expired", Message: "Email link is invalid or has expired", Status: http.StatusForbidden}
	ErrInvalidState       = &Error{Code: "bad_oauth_state", Message: "OAuth state parameter is invalid or expired", Status: http.StatusBadRequest}
	ErrOAuthFailed        = &Error{Code: "bad_oauth_callback", Message: "Unable to exchange external code", Status: http.StatusBadGateway}
)

// GenericMessage is shown for failures that are not auth errors.
const GenericMessage = "Something went wrong, please try again"

// Message extracts the user-facing text of err. Errors that are not auth
// errors are reported generically.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return GenericMessage
}
