package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"pennywise/internal/core"
)

const (
	audienceAuthenticated = "authenticated"
	audienceOAuthState    = "oauth-state"
	roleAuthenticated     = "authenticated"
)

type UserMetadata struct {
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
}

type AppMetadata struct {
	Provider string `json:"provider"`
}

// Claims mirrors the claim set of hosted Postgres auth services so access
// tokens can be inspected with the usual tooling.
type Claims struct {
	Email        string       `json:"email"`
	Role         string       `json:"role"`
	UserMetadata UserMetadata `json:"user_metadata"`
	AppMetadata  AppMetadata  `json:"app_metadata"`
	SessionID    string       `json:"session_id"`
	jwt.RegisteredClaims
}

// StateClaims travel through the OAuth provider in the state parameter.
type StateClaims struct {
	Provider string `json:"provider"`
	Next     string `json:"next"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret, siteURL string, ttl time.Duration, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: strings.TrimRight(siteURL, "/") + "/auth/v1",
		ttl:    ttl,
		now:    now,
	}
}

// IssueAccessToken returns a signed access token for u and its expiry.
func (t *TokenIssuer) IssueAccessToken(u core.User) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := Claims{
		Email:        u.Email,
		Role:         roleAuthenticated,
		UserMetadata: UserMetadata{FullName: u.FullName, Email: u.Email},
		AppMetadata:  AppMetadata{Provider: u.Provider},
		SessionID:    uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{audienceAuthenticated},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expires, nil
}

// ParseAccessToken verifies signature, issuer, audience and expiry.
func (t *TokenIssuer) ParseAccessToken(token string) (*Claims, error) {
	return t.parseAccess(token, jwt.WithExpirationRequired())
}

// ParseExpiredAccessToken verifies everything but expiry. Sign-out accepts
// stale tokens so a user can always end their session.
func (t *TokenIssuer) ParseExpiredAccessToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, t.keyFunc, jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, ErrSessionMissing
	}
	if claims.Issuer != t.issuer || claims.Subject == "" {
		return nil, ErrSessionMissing
	}
	return claims, nil
}

func (t *TokenIssuer) parseAccess(token string, opts ...jwt.ParserOption) (*Claims, error) {
	if token == "" {
		return nil, ErrSessionMissing
	}
	opts = append(opts,
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(audienceAuthenticated),
		jwt.WithTimeFunc(t.now),
	)
	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, t.keyFunc, opts...); err != nil {
		return nil, ErrSessionMissing
	}
	if claims.Subject == "" {
		return nil, ErrSessionMissing
	}
	return claims, nil
}

// IssueState signs the OAuth state for provider, valid for ttl.
func (t *TokenIssuer) IssueState(provider, next string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := StateClaims{
		Provider: provider,
		Next:     next,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{audienceOAuthState},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign oauth state: %w", err)
	}
	return signed, nil
}

func (t *TokenIssuer) ParseState(state string) (*StateClaims, error) {
	claims := &StateClaims{}
	_, err := jwt.ParseWithClaims(state, claims, t.keyFunc,
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(audienceOAuthState),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, ErrInvalidState
	}
	return claims, nil
}

func (t *TokenIssuer) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return t.secret, nil
}

// newOpaqueToken returns a random secret and the hash to store for it.
func newOpaqueToken() (secret, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	secret = base64.RawURLEncoding.EncodeToString(buf)
	return secret, HashToken(secret), nil
}

// HashToken is the storage form of an opaque token.
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
