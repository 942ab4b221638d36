package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	Type       core.TransactionType
	CategoryID int64
	From       time.Time
	To         time.Time
	MinCents   *int64
	MaxCents   *int64
	Search     string
	Page       int
	Limit      int
}

// PendingSyncTransaction is the minimal row handed to the ledger sync queue.
type PendingSyncTransaction struct {
	ID        int64
	UserID    int64
	CreatedAt time.Time
}

const transactionColumns = `id, user_id, category_id, type, amount_cents,
	description, notes, tags, date, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (*core.Transaction, error) {
	var (
		t       core.Transaction
		tagsRaw string
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.CategoryID, &t.Type, &t.Amount.Cents,
		&t.Description, &t.Notes, &tagsRaw, &t.Date, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	if tagsRaw != "" && tagsRaw != "[]" {
		if err := json.Unmarshal([]byte(tagsRaw), &t.Tags); err != nil {
			return nil, fmt.Errorf("decode transaction %d tags: %w", t.ID, err)
		}
	}
	return &t, nil
}

func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (user_id, category_id, type, amount_cents,
			description, notes, tags, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.CategoryID, t.Type, t.Amount.Cents,
		t.Description, t.Notes, tags, t.Date.UTC(), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("transaction insert id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// GetTransaction returns a live transaction owned by userID. Other users'
// rows and soft-deleted rows are reported as not found.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE id = ? AND user_id = ? AND is_deleted = 0`, id, userID)
	return scanTransaction(row)
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}

	// An edited row must reach the ledger again, so the sync flags reset.
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET category_id = ?, type = ?, amount_cents = ?, description = ?,
			notes = ?, tags = ?, date = ?, synced = 0, sync_error = 0, updated_at = ?
		WHERE id = ? AND user_id = ? AND is_deleted = 0`,
		t.CategoryID, t.Type, t.Amount.Cents, t.Description,
		t.Notes, tags, t.Date.UTC(), time.Now().UTC(),
		t.ID, t.UserID,
	)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction %d rows: %w", t.ID, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) SoftDeleteTransaction(ctx context.Context, userID, id int64) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET is_deleted = 1, deleted_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND is_deleted = 0`,
		now, now, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction %d rows: %w", id, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ListTransactions returns one page of the user's live transactions,
// newest first, plus the total row count for the filter.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64, f TransactionFilter) ([]core.Transaction, int64, error) {
	where := ` FROM transactions WHERE user_id = ? AND is_deleted = 0`
	args := []any{userID}

	if f.Type != "" {
		where += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.CategoryID > 0 {
		where += ` AND category_id = ?`
		args = append(args, f.CategoryID)
	}
	if !f.From.IsZero() {
		where += ` AND date >= ?`
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where += ` AND date <= ?`
		args = append(args, f.To.UTC())
	}
	if f.MinCents != nil {
		where += ` AND amount_cents >= ?`
		args = append(args, *f.MinCents)
	}
	if f.MaxCents != nil {
		where += ` AND amount_cents <= ?`
		args = append(args, *f.MaxCents)
	}
	if f.Search != "" {
		where += ` AND (description LIKE ? ESCAPE '\' OR notes LIKE ? ESCAPE '\')`
		pattern := "%" + escapeLike(f.Search) + "%"
		args = append(args, pattern, pattern)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}

	query := `SELECT ` + transactionColumns + where +
		` ORDER BY date DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// GetPendingSyncTransactions returns live rows not yet exported to the
// ledger, oldest first. Rows that failed a previous export attempt are
// included so the catch-up sweep retries them.
func (r *SQLiteRepository) GetPendingSyncTransactions(ctx context.Context, limit int) ([]PendingSyncTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, created_at FROM transactions
		WHERE synced = 0 AND is_deleted = 0
		ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncTransaction
	for rows.Next() {
		var p PendingSyncTransaction
		if err := rows.Scan(&p.ID, &p.UserID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending sync transaction: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetTransactionAnyUser fetches a transaction without ownership scoping,
// for the sync worker which operates across users.
func (r *SQLiteRepository) GetTransactionAnyUser(ctx context.Context, id int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE id = ? AND is_deleted = 0`, id)
	return scanTransaction(row)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET synced = 1, sync_error = 0, updated_at = ?
		WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark transaction %d synced: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_error = 1, updated_at = ?
		WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark transaction %d sync error: %w", id, err)
	}
	return nil
}
