package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const (
	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = time.Hour
	otpTTL         = 5 * time.Minute
)

var emailRE = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// TokenPair is what a successful login or refresh hands the client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthService orchestrates registration, login and the token lifecycle
// across SQLite and the email queue.
type AuthService struct {
	storage         *storage.SQLiteRepository
	amqpClient      *amqp.Client
	issuer          *auth.TokenIssuer
	emailQueue      string
	refreshTokenTTL time.Duration
}

func NewAuthService(st *storage.SQLiteRepository, amqpClient *amqp.Client, issuer *auth.TokenIssuer, emailQueue string, refreshTokenTTL time.Duration) *AuthService {
	return &AuthService{
		storage:         st,
		amqpClient:      amqpClient,
		issuer:          issuer,
		emailQueue:      emailQueue,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// defaultCategories are seeded for every new account so transactions can
// be recorded immediately.
var defaultCategories = []core.Category{
	{Name: "Food", Type: core.TypeExpense, Icon: "utensils", Color: "#e07a5f"},
	{Name: "Transport", Type: core.TypeExpense, Icon: "bus", Color: "#3d5a80"},
	{Name: "Housing", Type: core.TypeExpense, Icon: "home", Color: "#81b29a"},
	{Name: "Utilities", Type: core.TypeExpense, Icon: "bolt", Color: "#f2cc8f"},
	{Name: "Health", Type: core.TypeExpense, Icon: "heart", Color: "#c94f4f"},
	{Name: "Entertainment", Type: core.TypeExpense, Icon: "film", Color: "#9b5de5"},
	{Name: "Other Expenses", Type: core.TypeExpense, Icon: "ellipsis", Color: "#8d99ae"},
	{Name: "Salary", Type: core.TypeIncome, Icon: "briefcase", Color: "#2a9d8f"},
	{Name: "Freelance", Type: core.TypeIncome, Icon: "laptop", Color: "#457b9d"},
	{Name: "Other Income", Type: core.TypeIncome, Icon: "ellipsis", Color: "#8d99ae"},
}

// Register creates a pending account, seeds its default categories and
// queues the verification email.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var ve core.ValidationError
	if !emailRE.MatchString(email) {
		ve.Add("email", "a valid email address is required")
	}
	if ok, reason := auth.ValidPassword(password); !ok {
		ve.Add("password", reason)
	}
	if strings.TrimSpace(name) == "" {
		ve.Add("name", "name is required")
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &core.User{
		Email:        email,
		PasswordHash: hash,
		Profile:      core.Profile{Name: strings.TrimSpace(name)},
		Settings:     core.Settings{Currency: "USD", Theme: "light"},
		Status:       core.StatusPendingVerification,
	}
	if err := s.storage.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	for _, c := range defaultCategories {
		cat := c
		cat.UserID = user.ID
		cat.IsDefault = true
		if err := s.storage.CreateCategory(ctx, &cat); err != nil {
			slog.ErrorContext(ctx, "Failed to seed default category",
				"user_id", user.ID, "category", cat.Name, "error", err)
		}
	}

	if err := s.sendVerificationEmail(ctx, user); err != nil {
		// The account exists; the user can request another email.
		slog.ErrorContext(ctx, "Failed to queue verification email",
			"user_id", user.ID, "error", err)
	}

	return user, nil
}

func (s *AuthService) sendVerificationEmail(ctx context.Context, user *core.User) error {
	raw, hash, err := auth.NewOpaqueToken()
	if err != nil {
		return fmt.Errorf("generate verify token: %w", err)
	}
	expires := time.Now().Add(verifyTokenTTL)
	if err := s.storage.SetVerifyToken(ctx, user.ID, hash, expires); err != nil {
		return fmt.Errorf("store verify token: %w", err)
	}
	return s.publishEmail(ctx, amqp.NewEmailMessage(user.Email, user.Profile.Name, amqp.EmailVerify, raw, expires))
}

// Login checks credentials and returns a fresh token pair. Credential
// failures and unknown emails are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*core.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, core.ErrInvalidCredentials
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, nil, core.ErrInvalidCredentials
	}
	if !user.Status.CanLogin() {
		return nil, nil, core.ErrAccountDisabled
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a
// new pair is issued. Revoked or expired tokens fail.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (*TokenPair, error) {
	stored, err := s.storage.GetRefreshToken(ctx, auth.HashToken(rawRefreshToken))
	if err != nil {
		return nil, core.ErrTokenExpired
	}
	if stored.Revoked || time.Now().After(stored.ExpiresAt) {
		return nil, core.ErrTokenExpired
	}

	user, err := s.storage.GetUserByID(ctx, stored.UserID)
	if err != nil {
		return nil, core.ErrTokenExpired
	}
	if !user.Status.CanLogin() {
		return nil, core.ErrAccountDisabled
	}

	if err := s.storage.RevokeRefreshToken(ctx, stored.ID); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	return s.issueTokenPair(ctx, user)
}

// Logout revokes the presented refresh token. Unknown tokens are a no-op.
func (s *AuthService) Logout(ctx context.Context, rawRefreshToken string) error {
	stored, err := s.storage.GetRefreshToken(ctx, auth.HashToken(rawRefreshToken))
	if err != nil {
		return nil
	}
	return s.storage.RevokeRefreshToken(ctx, stored.ID)
}

func (s *AuthService) issueTokenPair(ctx context.Context, user *core.User) (*TokenPair, error) {
	access, err := s.issuer.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	raw, hash, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.storage.CreateRefreshToken(ctx, user.ID, hash, time.Now().Add(s.refreshTokenTTL)); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: raw}, nil
}

// VerifyEmail activates the account holding the raw verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) error {
	_, err := s.storage.ConsumeVerifyToken(ctx, auth.HashToken(rawToken))
	return err
}

// ResendVerification queues a fresh verification email for a pending user.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.storage.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil || user.Status != core.StatusPendingVerification {
		// Do not reveal whether the account exists.
		return nil
	}
	return s.sendVerificationEmail(ctx, user)
}

// ForgotPassword queues a reset email. It succeeds regardless of whether
// the email belongs to an account, so existence is not leaked.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.storage.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil
	}

	raw, hash, err := auth.NewOpaqueToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	expires := time.Now().Add(resetTokenTTL)
	if err := s.storage.SetResetToken(ctx, user.ID, hash, expires); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	return s.publishEmail(ctx, amqp.NewEmailMessage(user.Email, user.Profile.Name, amqp.EmailPasswordReset, raw, expires))
}

// ResetPassword replaces the password for the account holding the raw
// reset token and revokes every outstanding session.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if ok, reason := auth.ValidPassword(newPassword); !ok {
		var ve core.ValidationError
		ve.Add("password", reason)
		return ve.OrNil()
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	userID, err := s.storage.ConsumeResetToken(ctx, auth.HashToken(rawToken), hash)
	if err != nil {
		return err
	}
	if err := s.storage.RevokeUserRefreshTokens(ctx, userID); err != nil {
		slog.ErrorContext(ctx, "Failed to revoke sessions after password reset",
			"user_id", userID, "error", err)
	}
	return nil
}

// RequestOTP queues a one-time login code. Unknown emails succeed silently.
func (s *AuthService) RequestOTP(ctx context.Context, email string) error {
	user, err := s.storage.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil
	}
	if !user.Status.CanLogin() {
		return nil
	}

	code, err := auth.NewOTPCode()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	expires := time.Now().Add(otpTTL)
	if err := s.storage.SetOTP(ctx, user.ID, auth.HashToken(code), expires); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return s.publishEmail(ctx, amqp.NewEmailMessage(user.Email, user.Profile.Name, amqp.EmailOTP, code, expires))
}

// VerifyOTP exchanges a valid one-time code for a token pair.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*core.User, *TokenPair, error) {
	user, err := s.storage.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, nil, core.ErrInvalidCredentials
	}
	// Check the status before consuming: a rejected attempt must not
	// burn a suspended user's still-valid code.
	if !user.Status.CanLogin() {
		return nil, nil, core.ErrAccountDisabled
	}
	if err := s.storage.ConsumeOTP(ctx, user.ID, auth.HashToken(code)); err != nil {
		return nil, nil, core.ErrInvalidCredentials
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *AuthService) publishEmail(ctx context.Context, msg *amqp.EmailMessage) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping email", "kind", msg.Kind)
		return nil
	}
	return s.amqpClient.PublishEmail(ctx, s.emailQueue, msg)
}
