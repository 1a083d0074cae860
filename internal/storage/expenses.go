package storage

import (
	"context"
	"database/sql"
	"fmt"

	"pennywise/internal/core"
)

func (r *SQLRepository) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT id, user_id, title, amount, category_id, created_at
		FROM expenses
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]core.Expense, 0)
	for rows.Next() {
		var (
			e          core.Expense
			categoryID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.Amount, &categoryID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.CategoryID = categoryID.String
		e.CreatedAt = e.CreatedAt.UTC()
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

func (r *SQLRepository) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.ID = newID()
	e.CreatedAt = r.timestamp()

	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO expenses (id, user_id, title, amount, category_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		e.ID, e.UserID, e.Title, e.Amount.StringFixed(2), nullable(e.CategoryID), e.CreatedAt)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return e, nil
}

func (r *SQLRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.q(`
		UPDATE expenses SET title = ?, amount = ?, category_id = ?
		WHERE id = ? AND user_id = ?`),
		e.Title, e.Amount.StringFixed(2), nullable(e.CategoryID), e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return requireAffected(res)
}

func (r *SQLRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	if _, err := r.db.ExecContext(ctx, r.q(`DELETE FROM expenses WHERE id = ? AND user_id = ?`), id, userID); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
