package services

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

var validThemes = map[string]bool{"light": true, "dark": true, "system": true}

// UserService exposes the account's own profile and settings.
type UserService struct {
	storage *storage.SQLiteRepository
}

func NewUserService(st *storage.SQLiteRepository) *UserService {
	return &UserService{storage: st}
}

func (s *UserService) Get(ctx context.Context, userID int64) (*core.User, error) {
	return s.storage.GetUserByID(ctx, userID)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID int64, p core.Profile) (*core.User, error) {
	var ve core.ValidationError
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		ve.Add("name", "name is required")
	} else if len(p.Name) > 100 {
		ve.Add("name", "name too long (max 100 characters)")
	}
	if len(p.AvatarURL) > 500 {
		ve.Add("avatarUrl", "avatar URL too long (max 500 characters)")
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	if err := s.storage.UpdateProfile(ctx, userID, p); err != nil {
		return nil, err
	}
	return s.storage.GetUserByID(ctx, userID)
}

func (s *UserService) UpdateSettings(ctx context.Context, userID int64, set core.Settings) (*core.User, error) {
	var ve core.ValidationError
	set.Currency = strings.ToUpper(strings.TrimSpace(set.Currency))
	if len(set.Currency) != 3 {
		ve.Add("currency", "currency must be a 3-letter ISO code")
	}
	if set.Theme != "" && !validThemes[set.Theme] {
		ve.Add("theme", "theme must be light, dark or system")
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}
	if set.Theme == "" {
		set.Theme = "light"
	}

	if err := s.storage.UpdateSettings(ctx, userID, set); err != nil {
		return nil, err
	}
	return s.storage.GetUserByID(ctx, userID)
}

// ChangePassword verifies the current password before replacing it.
// All sessions other than the current access token are revoked.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, current) {
		return core.ErrInvalidCredentials
	}
	if ok, reason := auth.ValidPassword(next); !ok {
		var ve core.ValidationError
		ve.Add("newPassword", reason)
		return ve.OrNil()
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.storage.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	return s.storage.RevokeUserRefreshTokens(ctx, userID)
}

// Delete marks the account deleted and revokes its sessions.
func (s *UserService) Delete(ctx context.Context, userID int64) error {
	if err := s.storage.UpdateStatus(ctx, userID, core.StatusDeleted); err != nil {
		return err
	}
	return s.storage.RevokeUserRefreshTokens(ctx, userID)
}
