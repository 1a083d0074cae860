package core

import "time"

// AuthEventType names an auth-state transition.
type AuthEventType string

const (
	AuthSignedIn         AuthEventType = "SIGNED_IN"
	AuthSignedOut        AuthEventType = "SIGNED_OUT"
	AuthTokenRefreshed   AuthEventType = "TOKEN_REFRESHED"
	AuthUserUpdated      AuthEventType = "USER_UPDATED"
	AuthPasswordRecovery AuthEventType = "PASSWORD_RECOVERY"
)

// AuthEvent is published whenever a user's session state changes.
// User is the zero value for SIGNED_OUT.
type AuthEvent struct {
	Type   AuthEventType
	UserID string
	User   User
	At     time.Time
}

// Token kinds kept in the auth token store.
const (
	TokenRefresh  = "refresh"
	TokenRecovery = "recovery"
)

// AuthToken is a stored single-use token. Only the SHA-256 hash of the
// secret is persisted.
type AuthToken struct {
	Hash      string
	UserID    string
	Kind      string
	ExpiresAt time.Time
}

// PasswordReset is handed to whatever delivers recovery links.
type PasswordReset struct {
	UserID string
	Email  string
	Link   string
}
