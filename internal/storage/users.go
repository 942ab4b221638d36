package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// RefreshToken is a stored, hashed refresh credential. Raw token values
// never touch the database.
type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

const userColumns = `id, email, password_hash, name, avatar_url, phone,
	currency, theme, dial_code, status, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*core.User, error) {
	var u core.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash,
		&u.Profile.Name, &u.Profile.AvatarURL, &u.Profile.Phone,
		&u.Settings.Currency, &u.Settings.Theme, &u.Settings.DialCode,
		&u.Status, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, name, avatar_url, phone,
			currency, theme, dial_code, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Email, u.PasswordHash,
		u.Profile.Name, u.Profile.AvatarURL, u.Profile.Phone,
		u.Settings.Currency, u.Settings.Theme, u.Settings.DialCode,
		u.Status, now, now,
	)
	if isUniqueViolation(err) {
		return core.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("user insert id: %w", err)
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ? AND status != 'deleted'`, id)
	return scanUser(row)
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? AND status != 'deleted'`, email)
	return scanUser(row)
}

func (r *SQLiteRepository) UpdateProfile(ctx context.Context, userID int64, p core.Profile) error {
	return r.updateUser(ctx, userID, `
		UPDATE users SET name = ?, avatar_url = ?, phone = ?, updated_at = ?
		WHERE id = ? AND status != 'deleted'`,
		p.Name, p.AvatarURL, p.Phone, time.Now().UTC(), userID)
}

func (r *SQLiteRepository) UpdateSettings(ctx context.Context, userID int64, s core.Settings) error {
	return r.updateUser(ctx, userID, `
		UPDATE users SET currency = ?, theme = ?, dial_code = ?, updated_at = ?
		WHERE id = ? AND status != 'deleted'`,
		s.Currency, s.Theme, s.DialCode, time.Now().UTC(), userID)
}

func (r *SQLiteRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash []byte) error {
	return r.updateUser(ctx, userID, `
		UPDATE users SET password_hash = ?, updated_at = ?
		WHERE id = ? AND status != 'deleted'`,
		passwordHash, time.Now().UTC(), userID)
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, userID int64, status core.UserStatus) error {
	return r.updateUser(ctx, userID, `
		UPDATE users SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), userID)
}

func (r *SQLiteRepository) updateUser(ctx context.Context, userID int64, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return core.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update user %d: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user %d rows: %w", userID, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// SetVerifyToken stores the hash of an email verification token.
func (r *SQLiteRepository) SetVerifyToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	return r.updateUser(ctx, userID, `
		UPDATE users SET verify_token_hash = ?, verify_expires_at = ?, updated_at = ?
		WHERE id = ? AND status != 'deleted'`,
		tokenHash, expiresAt.UTC(), time.Now().UTC(), userID)
}

// ConsumeVerifyToken activates the user holding an unexpired verification
// token and clears the token so it cannot be replayed. Returns the user ID.
func (r *SQLiteRepository) ConsumeVerifyToken(ctx context.Context, tokenHash string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET status = 'active', verify_token_hash = NULL, verify_expires_at = NULL, updated_at = ?
		WHERE verify_token_hash = ? AND verify_expires_at > ? AND status = 'pending_verification'
		RETURNING id`,
		time.Now().UTC(), tokenHash, time.Now().UTC(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrTokenExpired
	}
	if err != nil {
		return 0, fmt.Errorf("consume verify token: %w", err)
	}
	return id, nil
}

// SetResetToken stores the hash of a password reset token.
func (r *SQLiteRepository) SetResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	return r.updateUser(ctx, userID, `
		UPDATE users SET reset_token_hash = ?, reset_expires_at = ?, updated_at = ?
		WHERE id = ? AND status != 'deleted'`,
		tokenHash, expiresAt.UTC(), time.Now().UTC(), userID)
}

// ConsumeResetToken replaces the password of the user holding an unexpired
// reset token and clears the token. Returns the user ID.
func (r *SQLiteRepository) ConsumeResetToken(ctx context.Context, tokenHash string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET password_hash = ?, reset_token_hash = NULL, reset_expires_at = NULL, updated_at = ?
		WHERE reset_token_hash = ? AND reset_expires_at > ? AND status != 'deleted'
		RETURNING id`,
		passwordHash, time.Now().UTC(), tokenHash, time.Now().UTC(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrTokenExpired
	}
	if err != nil {
		return 0, fmt.Errorf("consume reset token: %w", err)
	}
	return id, nil
}

// SetOTP stores the hash of a one-time login code.
func (r *SQLiteRepository) SetOTP(ctx context.Context, userID int64, otpHash string, expiresAt time.Time) error {
	return r.updateUser(ctx, userID, `
		UPDATE users SET otp_hash = ?, otp_expires_at = ?, updated_at = ?
		WHERE id = ? AND status != 'deleted'`,
		otpHash, expiresAt.UTC(), time.Now().UTC(), userID)
}

// ConsumeOTP clears a matching unexpired one-time code for the user.
func (r *SQLiteRepository) ConsumeOTP(ctx context.Context, userID int64, otpHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET otp_hash = NULL, otp_expires_at = NULL, updated_at = ?
		WHERE id = ? AND otp_hash = ? AND otp_expires_at > ?`,
		time.Now().UTC(), userID, otpHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume otp rows: %w", err)
	}
	if n == 0 {
		return core.ErrTokenExpired
	}
	return nil
}

func (r *SQLiteRepository) CreateRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		userID, tokenHash, expiresAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	var t RefreshToken
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked, created_at
		FROM refresh_tokens WHERE token_hash = ?`, tokenHash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &t, nil
}

func (r *SQLiteRepository) RevokeRefreshToken(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("revoke refresh token %d: %w", id, err)
	}
	return nil
}

// RevokeUserRefreshTokens invalidates every outstanding refresh token for
// the user, used on password reset and account deletion.
func (r *SQLiteRepository) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ? AND revoked = 0`, userID)
	if err != nil {
		return fmt.Errorf("revoke refresh tokens for user %d: %w", userID, err)
	}
	return nil
}
