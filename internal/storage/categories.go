package storage

import (
	"context"
	"fmt"

	"pennywise/internal/core"
)

func (r *SQLRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT id, user_id, name, budget
		FROM categories
		WHERE user_id = ?
		ORDER BY created_at, id`), userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]core.Category, 0)
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Budget); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func (r *SQLRepository) InsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.ID = newID()

	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO categories (id, user_id, name, budget, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		c.ID, c.UserID, c.Name, c.Budget.StringFixed(2), r.timestamp())
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (r *SQLRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.q(`
		UPDATE categories SET name = ?, budget = ?
		WHERE id = ? AND user_id = ?`),
		c.Name, c.Budget.StringFixed(2), c.ID, c.UserID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireAffected(res)
}

// DeleteCategory detaches the user's expenses before removing the row, so
// the outcome does not depend on foreign key enforcement.
func (r *SQLRepository) DeleteCategory(ctx context.Context, userID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, r.q(`
		UPDATE expenses SET category_id = NULL
		WHERE user_id = ? AND category_id = ?`), userID, id); err != nil {
		return fmt.Errorf("detach expenses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM categories WHERE id = ? AND user_id = ?`), id, userID); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
