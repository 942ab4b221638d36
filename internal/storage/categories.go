package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

const categoryColumns = `id, user_id, name, type, parent_id, color, icon,
	is_default, monthly_budget_cents, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (*core.Category, error) {
	var (
		c        core.Category
		parentID sql.NullInt64
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Type, &parentID, &c.Color, &c.Icon,
		&c.IsDefault, &c.MonthlyBudget.Cents, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan category: %w", err)
	}
	if parentID.Valid {
		c.ParentID = &parentID.Int64
	}
	return &c, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c *core.Category) error {
	now := time.Now().UTC()
	var parentID any
	if c.ParentID != nil {
		parentID = *c.ParentID
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (user_id, name, type, parent_id, color, icon,
			is_default, monthly_budget_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.Name, c.Type, parentID, c.Color, c.Icon,
		c.IsDefault, c.MonthlyBudget.Cents, now, now,
	)
	if isUniqueViolation(err) {
		return core.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("category insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// GetCategory returns a live category owned by userID. Rows owned by other
// users and soft-deleted rows are reported as not found.
func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, id int64) (*core.Category, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+categoryColumns+` FROM categories
		WHERE id = ? AND user_id = ? AND is_deleted = 0`, id, userID)
	return scanCategory(row)
}

// ListCategories returns the user's live categories, optionally filtered by
// type, ordered with defaults first then by name.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64, typ core.TransactionType) ([]core.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories
		WHERE user_id = ? AND is_deleted = 0`
	args := []any{userID}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, typ)
	}
	query += ` ORDER BY is_default DESC, lower(name)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateCategory changes the mutable fields of a category. Type and parent
// are fixed at creation.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c *core.Category) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, color = ?, icon = ?, monthly_budget_cents = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND is_deleted = 0`,
		c.Name, c.Color, c.Icon, c.MonthlyBudget.Cents, time.Now().UTC(),
		c.ID, c.UserID,
	)
	if isUniqueViolation(err) {
		return core.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update category %d: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update category %d rows: %w", c.ID, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// SoftDeleteCategory tombstones a category. Transactions that reference it
// keep their category_id so history stays intact.
func (r *SQLiteRepository) SoftDeleteCategory(ctx context.Context, userID, id int64) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE categories SET is_deleted = 1, deleted_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND is_deleted = 0`,
		now, now, id, userID)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category %d rows: %w", id, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
