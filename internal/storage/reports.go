package storage

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// GetSummary aggregates live transactions by type for a date range.
func (r *SQLiteRepository) GetSummary(ctx context.Context, userID int64, from, to time.Time) (core.Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT type, COALESCE(SUM(amount_cents), 0), COUNT(*)
		FROM transactions
		WHERE user_id = ? AND is_deleted = 0 AND date >= ? AND date <= ?
		GROUP BY type`,
		userID, from.UTC(), to.UTC())
	if err != nil {
		return core.Summary{}, fmt.Errorf("summary query: %w", err)
	}
	defer rows.Close()

	var s core.Summary
	for rows.Next() {
		var (
			typ   core.TransactionType
			total core.TypeTotal
		)
		if err := rows.Scan(&typ, &total.Total.Cents, &total.Count); err != nil {
			return core.Summary{}, fmt.Errorf("scan summary row: %w", err)
		}
		switch typ {
		case core.TypeIncome:
			s.Income = total
		case core.TypeExpense:
			s.Expenses = total
		}
	}
	if err := rows.Err(); err != nil {
		return core.Summary{}, fmt.Errorf("summary rows: %w", err)
	}
	s.NetAmount = s.Net()
	return s, nil
}

// GetCategoryBreakdown aggregates live transactions per category for one
// type and date range, largest total first. Soft-deleted categories still
// appear so historical rows keep a name.
func (r *SQLiteRepository) GetCategoryBreakdown(ctx context.Context, userID int64, typ core.TransactionType, from, to time.Time) ([]core.CategoryBreakdown, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, COALESCE(SUM(t.amount_cents), 0), COUNT(t.id)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.is_deleted = 0 AND t.type = ?
			AND t.date >= ? AND t.date <= ?
		GROUP BY c.id, c.name
		ORDER BY SUM(t.amount_cents) DESC`,
		userID, typ, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("category breakdown query: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryBreakdown
	for rows.Next() {
		var b core.CategoryBreakdown
		if err := rows.Scan(&b.CategoryID, &b.CategoryName, &b.Total.Cents, &b.Count); err != nil {
			return nil, fmt.Errorf("scan breakdown row: %w", err)
		}
		if b.Count > 0 {
			b.Average = core.Money{Cents: b.Total.Cents / b.Count}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
