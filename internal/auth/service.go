package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"pennywise/internal/core"
	"pennywise/internal/log"
)

// UserStore persists users and their opaque tokens.
type UserStore interface {
	// CreateUser returns core.ErrConflict when the email is taken.
	CreateUser(ctx context.Context, u core.User, passwordHash string) error
	// GetUserByEmail returns the user and password hash, or core.ErrNotFound.
	GetUserByEmail(ctx context.Context, email string) (core.User, string, error)
	GetUserByID(ctx context.Context, id string) (core.User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error

	SaveToken(ctx context.Context, t core.AuthToken) error
	// ConsumeToken deletes the token and returns it. Unknown or expired
	// tokens yield core.ErrNotFound.
	ConsumeToken(ctx context.Context, kind, hash string, now time.Time) (core.AuthToken, error)
	RevokeTokens(ctx context.Context, userID, kind string) error
}

// ResetNotifier delivers password recovery links.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, reset core.PasswordReset) error
}

type Config struct {
	SiteURL         string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	RecoveryTTL     time.Duration
	StateTTL        time.Duration
	BcryptCost      int
	Providers       map[string]ProviderConfig
}

func (c *Config) setDefaults() {
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = time.Hour
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.RecoveryTTL <= 0 {
		c.RecoveryTTL = time.Hour
	}
	if c.StateTTL <= 0 {
		c.StateTTL = 10 * time.Minute
	}
}

// Service implements the auth side of the data client on top of a UserStore.
type Service struct {
	users    UserStore
	tokens   *TokenIssuer
	notifier ResetNotifier
	hub      *Hub
	oauth    map[string]*oauthProvider
	cfg      Config
	now      func() time.Time
	logger   *log.Logger
}

type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l.WithComponent(log.ComponentAuth) }
}

func NewService(users UserStore, notifier ResetNotifier, cfg Config, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	cfg.setDefaults()

	s := &Service{
		users:    users,
		notifier: notifier,
		hub:      NewHub(),
		oauth:    make(map[string]*oauthProvider),
		cfg:      cfg,
		now:      time.Now,
		logger:   log.Wrap(nil, log.ComponentAuth),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tokens = NewTokenIssuer(cfg.JWTSecret, cfg.SiteURL, cfg.AccessTokenTTL, s.now)
	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}

	callback := strings.TrimRight(cfg.SiteURL, "/") + "/auth/callback"
	for name, pc := range cfg.Providers {
		if pc.ClientID == "" {
			continue
		}
		p, err := newOAuthProvider(name, pc, callback)
		if err != nil {
			return nil, err
		}
		s.oauth[name] = p
	}
	return s, nil
}

// Hub exposes the event hub for callers that publish on their own.
func (s *Service) Hub() *Hub { return s.hub }

func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (core.Session, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return core.Session{}, err
	}
	user, hash, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return core.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("look up user: %w", err)
	}
	if !CheckPassword(password, hash) {
		s.logger.WarnContext(ctx, "Rejected sign-in", log.FieldUserID, user.ID, log.FieldOperation, log.OpSignIn)
		return core.Session{}, ErrInvalidCredentials
	}
	return s.startSession(ctx, user, core.AuthSignedIn)
}

func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (core.Session, error) {
	user, err := s.CreatePasswordUser(ctx, email, password, fullName)
	if err != nil {
		return core.Session{}, err
	}
	return s.startSession(ctx, user, core.AuthSignedIn)
}

// CreatePasswordUser stores a new email/password user without signing in.
func (s *Service) CreatePasswordUser(ctx context.Context, email, password, fullName string) (core.User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return core.User{}, err
	}
	if err := validatePassword(password); err != nil {
		return core.User{}, err
	}
	hash, err := HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return core.User{}, err
	}
	user := core.User{
		ID:        newID(),
		Email:     email,
		FullName:  strings.TrimSpace(fullName),
		Provider:  core.ProviderEmail,
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user, hash); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return core.User{}, ErrUserExists
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, user.ID, log.FieldOperation, log.OpSignUp)
	return user, nil
}

// SignOut revokes every refresh token of the token's owner, which ends the
// user's sessions on all devices once their access tokens lapse.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.ParseExpiredAccessToken(accessToken)
	if err != nil {
		return nil
	}
	if err := s.users.RevokeTokens(ctx, claims.Subject, core.TokenRefresh); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	s.logger.InfoContext(ctx, "User signed out", log.FieldUserID, claims.Subject, log.FieldOperation, log.OpSignOut)
	s.hub.Publish(core.AuthEvent{Type: core.AuthSignedOut, UserID: claims.Subject, At: s.now()})
	return nil
}

func (s *Service) GetUser(ctx context.Context, accessToken string) (core.User, error) {
	claims, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return core.User{}, err
	}
	user, err := s.users.GetUserByID(ctx, claims.Subject)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, ErrSessionMissing
	}
	if err != nil {
		return core.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// RefreshSession rotates a refresh token into a fresh session.
func (s *Service) RefreshSession(ctx context.Context, refreshToken string) (core.Session, error) {
	if refreshToken == "" {
		return core.Session{}, ErrInvalidRefresh
	}
	tok, err := s.users.ConsumeToken(ctx, core.TokenRefresh, HashToken(refreshToken), s.now())
	if errors.Is(err, core.ErrNotFound) {
		return core.Session{}, ErrInvalidRefresh
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("consume refresh token: %w", err)
	}
	user, err := s.users.GetUserByID(ctx, tok.UserID)
	if err != nil {
		return core.Session{}, ErrInvalidRefresh
	}
	return s.startSession(ctx, user, core.AuthTokenRefreshed)
}

func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.oauth))
	for name := range s.oauth {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Service) SignInWithOAuth(ctx context.Context, provider, next string) (string, error) {
	p, ok := s.oauth[provider]
	if !ok {
		return "", ErrProviderDisabled
	}
	state, err := s.tokens.IssueState(provider, next, s.cfg.StateTTL)
	if err != nil {
		return "", err
	}
	return p.config.AuthCodeURL(state), nil
}

// ExchangeCodeForSession completes the OAuth flow. Users are matched by
// email, so an OAuth sign-in reaches an existing password account.
func (s *Service) ExchangeCodeForSession(ctx context.Context, code, state string) (core.Session, string, error) {
	claims, err := s.tokens.ParseState(state)
	if err != nil {
		return core.Session{}, "", err
	}
	p, ok := s.oauth[claims.Provider]
	if !ok {
		return core.Session{}, "", ErrProviderDisabled
	}
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		s.logger.WarnContext(ctx, "OAuth code exchange failed", log.FieldProvider, p.name, log.FieldError, err)
		return core.Session{}, "", ErrOAuthFailed
	}
	prof, err := p.fetch(ctx, p.config.Client(ctx, tok), p.profileURL)
	if err != nil {
		s.logger.WarnContext(ctx, "OAuth profile fetch failed", log.FieldProvider, p.name, log.FieldError, err)
		return core.Session{}, "", ErrOAuthFailed
	}

	user, err := s.findOrCreateOAuthUser(ctx, p.name, prof)
	if err != nil {
		return core.Session{}, "", err
	}
	session, err := s.startSession(ctx, user, core.AuthSignedIn)
	return session, claims.Next, err
}

func (s *Service) findOrCreateOAuthUser(ctx context.Context, provider string, prof profile) (core.User, error) {
	email, err := NormalizeEmail(prof.Email)
	if err != nil {
		return core.User{}, err
	}
	user, _, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.User{}, fmt.Errorf("look up user: %w", err)
	}
	user = core.User{
		ID:        newID(),
		Email:     email,
		FullName:  prof.FullName,
		Provider:  provider,
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user, ""); err != nil {
		return core.User{}, fmt.Errorf("create oauth user: %w", err)
	}
	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, user.ID, log.FieldProvider, provider)
	return user, nil
}

// ResetPasswordForEmail sends a recovery link when the address belongs to a
// user. Unknown addresses succeed silently.
func (s *Service) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	user, _, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		s.logger.InfoContext(ctx, "Password reset requested for unknown email", log.FieldOperation, log.OpReset)
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}

	secret, hash, err := newOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.users.SaveToken(ctx, core.AuthToken{
		Hash:      hash,
		UserID:    user.ID,
		Kind:      core.TokenRecovery,
		ExpiresAt: s.now().Add(s.cfg.RecoveryTTL),
	}); err != nil {
		return fmt.Errorf("save recovery token: %w", err)
	}

	link, err := recoveryLink(redirectTo, secret)
	if err != nil {
		return err
	}
	if err := s.notifier.NotifyPasswordReset(ctx, core.PasswordReset{UserID: user.ID, Email: user.Email, Link: link}); err != nil {
		return fmt.Errorf("send recovery link: %w", err)
	}
	return nil
}

func recoveryLink(redirectTo, secret string) (string, error) {
	u, err := url.Parse(redirectTo)
	if err != nil {
		return "", fmt.Errorf("parse redirect: %w", err)
	}
	q := u.Query()
	q.Set("token_hash", secret)
	q.Set("type", core.TokenRecovery)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// VerifyRecovery exchanges a recovery link token for a session.
func (s *Service) VerifyRecovery(ctx context.Context, tokenHash string) (core.Session, error) {
	if tokenHash == "" {
		return core.Session{}, ErrLinkExpired
	}
	tok, err := s.users.ConsumeToken(ctx, core.TokenRecovery, HashToken(tokenHash), s.now())
	if errors.Is(err, core.ErrNotFound) {
		return core.Session{}, ErrLinkExpired
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("consume recovery token: %w", err)
	}
	user, err := s.users.GetUserByID(ctx, tok.UserID)
	if err != nil {
		return core.Session{}, ErrLinkExpired
	}
	return s.startSession(ctx, user, core.AuthPasswordRecovery)
}

func (s *Service) UpdatePassword(ctx context.Context, accessToken, password string) (core.User, error) {
	user, err := s.GetUser(ctx, accessToken)
	if err != nil {
		return core.User{}, err
	}
	if err := validatePassword(password); err != nil {
		return core.User{}, err
	}
	hash, err := HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return core.User{}, err
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return core.User{}, fmt.Errorf("update password: %w", err)
	}
	s.hub.Publish(core.AuthEvent{Type: core.AuthUserUpdated, UserID: user.ID, User: user, At: s.now()})
	return user, nil
}

func (s *Service) OnAuthStateChange(ctx context.Context, fn func(core.AuthEvent)) func() {
	return s.hub.Subscribe(ctx, fn)
}

func (s *Service) startSession(ctx context.Context, user core.User, event core.AuthEventType) (core.Session, error) {
	access, expires, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return core.Session{}, err
	}
	secret, hash, err := newOpaqueToken()
	if err != nil {
		return core.Session{}, err
	}
	if err := s.users.SaveToken(ctx, core.AuthToken{
		Hash:      hash,
		UserID:    user.ID,
		Kind:      core.TokenRefresh,
		ExpiresAt: s.now().Add(s.cfg.RefreshTokenTTL),
	}); err != nil {
		return core.Session{}, fmt.Errorf("save refresh token: %w", err)
	}

	s.logger.DebugContext(ctx, "Session issued", log.FieldUserID, user.ID, log.FieldAuthEvent, string(event))
	s.hub.Publish(core.AuthEvent{Type: event, UserID: user.ID, User: user, At: s.now()})
	return core.Session{AccessToken: access, RefreshToken: secret, ExpiresAt: expires, User: user}, nil
}

// LogNotifier records recovery links in the log instead of sending them.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) NotifyPasswordReset(ctx context.Context, reset core.PasswordReset) error {
	n.Logger.InfoContext(ctx, "Password recovery link issued",
		log.FieldUserID, reset.UserID,
		log.FieldEmail, reset.Email,
		"link", reset.Link)
	return nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
