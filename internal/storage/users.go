package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pennywise/internal/core"
)

func (r *SQLRepository) CreateUser(ctx context.Context, u core.User, passwordHash string) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.timestamp()
	}
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO users (id, email, full_name, provider, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		u.ID, strings.ToLower(u.Email), u.FullName, u.Provider, passwordHash, createdAt.UTC())
	if isUniqueViolation(err) {
		return core.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetUserByEmail(ctx context.Context, email string) (core.User, string, error) {
	var (
		u    core.User
		hash string
	)
	err := r.db.QueryRowContext(ctx, r.q(`
		SELECT id, email, full_name, provider, password_hash, created_at
		FROM users WHERE email = ?`), strings.ToLower(email)).
		Scan(&u.ID, &u.Email, &u.FullName, &u.Provider, &hash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, "", core.ErrNotFound
	}
	if err != nil {
		return core.User{}, "", fmt.Errorf("get user by email: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, hash, nil
}

func (r *SQLRepository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx, r.q(`
		SELECT id, email, full_name, provider, created_at
		FROM users WHERE id = ?`), id).
		Scan(&u.ID, &u.Email, &u.FullName, &u.Provider, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (r *SQLRepository) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE users SET password_hash = ? WHERE id = ?`), hash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(res)
}

func (r *SQLRepository) SaveToken(ctx context.Context, t core.AuthToken) error {
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO auth_tokens (token_hash, user_id, kind, expires_at)
		VALUES (?, ?, ?, ?)`),
		t.Hash, t.UserID, t.Kind, t.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// ConsumeToken deletes the token in the same transaction that reads it, so a
// token can be redeemed at most once even under concurrent requests.
func (r *SQLRepository) ConsumeToken(ctx context.Context, kind, hash string, now time.Time) (core.AuthToken, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.AuthToken{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t := core.AuthToken{Hash: hash, Kind: kind}
	err = tx.QueryRowContext(ctx, r.q(`
		SELECT user_id, expires_at FROM auth_tokens
		WHERE token_hash = ? AND kind = ?`), hash, kind).
		Scan(&t.UserID, &t.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.AuthToken{}, core.ErrNotFound
	}
	if err != nil {
		return core.AuthToken{}, fmt.Errorf("read token: %w", err)
	}

	res, err := tx.ExecContext(ctx, r.q(`DELETE FROM auth_tokens WHERE token_hash = ?`), hash)
	if err != nil {
		return core.AuthToken{}, fmt.Errorf("delete token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.AuthToken{}, core.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return core.AuthToken{}, fmt.Errorf("commit: %w", err)
	}

	if !now.Before(t.ExpiresAt) {
		return core.AuthToken{}, core.ErrNotFound
	}
	t.ExpiresAt = t.ExpiresAt.UTC()
	return t, nil
}

func (r *SQLRepository) RevokeTokens(ctx context.Context, userID, kind string) error {
	if _, err := r.db.ExecContext(ctx, r.q(`DELETE FROM auth_tokens WHERE user_id = ? AND kind = ?`), userID, kind); err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	return nil
}
