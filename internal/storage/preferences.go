package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pennywise/internal/core"
)

func (r *SQLRepository) ListCurrencies(ctx context.Context) ([]core.Currency, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT code, symbol, name FROM currencies ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query currencies: %w", err)
	}
	defer rows.Close()

	currencies := make([]core.Currency, 0, 8)
	for rows.Next() {
		var c core.Currency
		if err := rows.Scan(&c.Code, &c.Symbol, &c.Name); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		currencies = append(currencies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate currencies: %w", err)
	}
	return currencies, nil
}

func (r *SQLRepository) GetCurrency(ctx context.Context, code string) (core.Currency, error) {
	var c core.Currency
	err := r.db.QueryRowContext(ctx, r.q(`SELECT code, symbol, name FROM currencies WHERE code = ?`), code).
		Scan(&c.Code, &c.Symbol, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Currency{}, core.ErrNotFound
	}
	if err != nil {
		return core.Currency{}, fmt.Errorf("get currency: %w", err)
	}
	return c, nil
}

func (r *SQLRepository) GetPreference(ctx context.Context, userID string) (core.Preference, error) {
	p := core.Preference{UserID: userID}
	err := r.db.QueryRowContext(ctx, r.q(`SELECT currency_code FROM user_preferences WHERE user_id = ?`), userID).
		Scan(&p.CurrencyCode)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Preference{}, core.ErrNotFound
	}
	if err != nil {
		return core.Preference{}, fmt.Errorf("get preference: %w", err)
	}
	return p, nil
}

func (r *SQLRepository) UpsertPreference(ctx context.Context, p core.Preference) error {
	if p.UserID == "" {
		return core.ErrMissingUser
	}
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO user_preferences (user_id, currency_code, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET currency_code = excluded.currency_code, updated_at = excluded.updated_at`),
		p.UserID, p.CurrencyCode, r.timestamp())
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}
