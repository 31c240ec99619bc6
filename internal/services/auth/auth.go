// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth implements the account flows on top of the user store:
// registration, login, password changes and resets, email verification.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"codeberg.org/oliverandrich/infographic-api/internal/apierror"
	"codeberg.org/oliverandrich/infographic-api/internal/config"
	"codeberg.org/oliverandrich/infographic-api/internal/models"
	"codeberg.org/oliverandrich/infographic-api/internal/repository"
	"codeberg.org/oliverandrich/infographic-api/internal/services/token"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailInUse          = apierror.BadRequest("Email already in use")
	ErrMissingCredentials  = apierror.BadRequest("Please provide email and password")
	ErrInvalidCredentials  = apierror.Unauthorized("Incorrect email or password")
	ErrWrongPassword       = apierror.Unauthorized("Your current password is wrong.")
	ErrNoUserWithEmail     = apierror.NotFound("There is no user with that email address.")
	ErrTokenInvalid        = apierror.BadRequest("Token is invalid or has expired")
	ErrPasswordMismatch    = apierror.BadRequest("Passwords are not the same!")
	ErrNotPasswordRoute    = apierror.BadRequest("This route is not for password updates. Please use /update-password.")
	ErrAlreadyVerified     = apierror.BadRequest("Email is already verified")
	ErrVerificationNotSent = apierror.New(http.StatusInternalServerError, "There was an error sending the email. Try again later!")
)

// ErrAccountDeactivated is returned by CreateAdmin for the email of a
// deactivated account.
var ErrAccountDeactivated = errors.New("account with this email is deactivated")

const (
	msgResetSent      = "Token sent to email!"
	msgResetGenerated = "Password reset token generated successfully!"
)

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Mailer delivers the account mails.
type Mailer interface {
	SendPasswordReset(ctx context.Context, user *models.User, resetURL string) error
	SendVerification(ctx context.Context, user *models.User, verifyURL string) error
}

// Service implements registration, login and the password and
// verification flows.
type Service struct {
	repo           *repository.Repository
	mailer         Mailer
	logger         *slog.Logger
	passwordPolicy PasswordPolicy
	baseURL        string
	bcryptCost     int
	now            func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBcryptCost overrides the configured hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

func NewService(repo *repository.Repository, mailer Mailer, cfg *config.Config, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:           repo,
		mailer:         mailer,
		logger:         logger,
		passwordPolicy: DefaultPasswordPolicy(),
		baseURL:        strings.TrimSuffix(cfg.Server.BaseURL, "/"),
		bcryptCost:     cfg.Auth.BcryptCost,
		now:            time.Now,
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterParams holds the parameters for user registration
type RegisterParams struct {
	Name     string
	Email    string
	Phone    string
	Gender   string
	Password string
	Role     models.Role
}

// NormalizeEmail lowercases and trims an address. Emails are stored this way.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashPassword computes the stored form of a plaintext password.
func (s *Service) HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether candidate matches the stored hash.
func VerifyPassword(candidate, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

// changedAt is the passwordChangedAt stamp for a change happening now. It
// lies one second in the past so a token issued in the same second as the
// change stays valid.
func (s *Service) changedAt() time.Time {
	return s.now().UTC().Add(-time.Second)
}

func (s *Service) validatePassword(password string, user *models.User) error {
	localPart, _, _ := strings.Cut(user.Email, "@")
	err := s.passwordPolicy.Check(password, user.Name, localPart)
	if err == nil {
		return nil
	}
	var perr *PasswordError
	if errors.As(err, &perr) {
		return &apierror.Error{
			Status:      http.StatusBadRequest,
			Message:     "Invalid input data. " + perr.Error(),
			Operational: true,
			Err:         err,
		}
	}
	return err
}

// Register creates a new user account and starts email verification.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	user := &models.User{
		Name:   strings.TrimSpace(params.Name),
		Email:  NormalizeEmail(params.Email),
		Gender: params.Gender,
		Role:   params.Role,
	}
	if params.Phone != "" {
		user.Phone = &params.Phone
	}

	taken, err := s.repo.EmailTaken(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if taken {
		return nil, ErrEmailInUse
	}

	if err := s.validatePassword(params.Password, user); err != nil {
		return nil, err
	}

	if user.PasswordHash, err = s.HashPassword(params.Password); err != nil {
		return nil, err
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("register_success", "user_id", user.ID, "email", user.Email)

	if err := s.startVerification(ctx, user); err != nil {
		s.logger.Warn("verification_email_failed", "user_id", user.ID, "error", err)
	}

	return user, nil
}

// Login authenticates a user and returns the user if successful
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.repo.GetActiveUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			s.logger.Warn("login_failed", "email", email, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !VerifyPassword(password, user.PasswordHash) {
		s.logger.Warn("login_failed", "email", email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("login_success", "user_id", user.ID, "email", email)
	return user, nil
}

// ForgotPassword stores a fresh reset token and mails the reset link. The
// returned message tells the client whether the mail went out.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := s.repo.GetActiveUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNoUserWithEmail
		}
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	secret, err := token.GenerateOneTimeSecret(s.now().UTC(), token.ResetTokenTTL)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetPasswordResetToken(ctx, user.ID, &secret.Hash, &secret.ExpiresAt); err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}

	resetURL := s.baseURL + "/api/v1/auth/reset-password/" + secret.Plaintext
	if err := s.mailer.SendPasswordReset(ctx, user, resetURL); err != nil {
		s.logger.Error("password_reset_email_failed", "user_id", user.ID, "error", err)
		if err := s.repo.SetPasswordResetToken(ctx, user.ID, nil, nil); err != nil {
			return "", fmt.Errorf("failed to clear reset token: %w", err)
		}
		return msgResetGenerated, nil
	}

	s.logger.Info("password_reset_requested", "user_id", user.ID)
	return msgResetSent, nil
}

// ResetPassword sets a new password for the holder of a valid reset token.
// The token is consumed by the same update that stores the password.
func (s *Service) ResetPassword(ctx context.Context, rawToken, password, passwordConfirm string) (*models.User, error) {
	hash := token.HashOneTimeSecret(rawToken)

	user, err := s.repo.GetActiveUserByResetToken(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.PasswordResetExpires == nil || !user.PasswordResetExpires.After(s.now()) {
		return nil, ErrTokenInvalid
	}

	if err := s.setPassword(ctx, user, password, passwordConfirm, func(passwordHash string, changedAt time.Time) error {
		return s.repo.ResetPasswordWithToken(ctx, user.ID, hash, passwordHash, changedAt)
	}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	user.PasswordResetToken = nil
	user.PasswordResetExpires = nil
	s.logger.Info("password_reset", "user_id", user.ID)
	return user, nil
}

// UpdatePassword changes the password of a user who knows the current one.
func (s *Service) UpdatePassword(ctx context.Context, user *models.User, current, password, passwordConfirm string) (*models.User, error) {
	if !VerifyPassword(current, user.PasswordHash) {
		return nil, ErrWrongPassword
	}

	if err := s.setPassword(ctx, user, password, passwordConfirm, func(passwordHash string, changedAt time.Time) error {
		return s.repo.UpdateUserPassword(ctx, user.ID, passwordHash, changedAt)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("password_changed", "user_id", user.ID)
	return user, nil
}

// setPassword validates, hashes and persists a new password through store,
// then mirrors the change on user.
func (s *Service) setPassword(
	ctx context.Context,
	user *models.User,
	password, passwordConfirm string,
	store func(passwordHash string, changedAt time.Time) error,
) error {
	if password != passwordConfirm {
		return ErrPasswordMismatch
	}
	if err := s.validatePassword(password, user); err != nil {
		return err
	}

	passwordHash, err := s.HashPassword(password)
	if err != nil {
		return err
	}
	changedAt := s.changedAt()

	if err := store(passwordHash, changedAt); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	user.PasswordHash = passwordHash
	user.PasswordChangedAt = &changedAt
	return nil
}

// UpdateMeParams holds the self-service profile changes. Nil means unchanged.
type UpdateMeParams struct {
	Name  *string
	Email *string
}

// UpdateMe applies profile changes made by the user themself.
func (s *Service) UpdateMe(ctx context.Context, user *models.User, params UpdateMeParams) (*models.User, error) {
	if params.Name != nil {
		user.Name = strings.TrimSpace(*params.Name)
	}
	if params.Email != nil {
		user.Email = NormalizeEmail(*params.Email)
	}
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// DeleteMe deactivates the account. The record stays in the store.
func (s *Service) DeleteMe(ctx context.Context, user *models.User) error {
	if err := s.repo.DeactivateUser(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	s.logger.Info("account_deactivated", "user_id", user.ID)
	return nil
}

// VerifyEmail marks the holder of a valid verification token as verified.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) error {
	hash := token.HashOneTimeSecret(rawToken)

	user, err := s.repo.GetActiveUserByVerificationToken(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.EmailVerificationExpires == nil || !user.EmailVerificationExpires.After(s.now()) {
		return ErrTokenInvalid
	}

	if err := s.repo.VerifyEmailWithToken(ctx, user.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("failed to verify email: %w", err)
	}

	s.logger.Info("email_verified", "user_id", user.ID)
	return nil
}

// ResendVerification issues a new verification token for an unverified user.
func (s *Service) ResendVerification(ctx context.Context, user *models.User) error {
	if user.EmailVerified {
		return ErrAlreadyVerified
	}
	if err := s.startVerification(ctx, user); err != nil {
		s.logger.Error("verification_email_failed", "user_id", user.ID, "error", err)
		return ErrVerificationNotSent
	}
	return nil
}

// startVerification stores a verification token and mails the link. On a
// mail failure the token is cleared again.
func (s *Service) startVerification(ctx context.Context, user *models.User) error {
	secret, err := token.GenerateOneTimeSecret(s.now().UTC(), token.VerificationTokenTTL)
	if err != nil {
		return err
	}
	if err := s.repo.SetEmailVerificationToken(ctx, user.ID, &secret.Hash, &secret.ExpiresAt); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}
	user.EmailVerificationToken = &secret.Hash
	user.EmailVerificationExpires = &secret.ExpiresAt

	verifyURL := s.baseURL + "/api/v1/auth/verify-email/" + secret.Plaintext
	if err := s.mailer.SendVerification(ctx, user, verifyURL); err != nil {
		user.EmailVerificationToken = nil
		user.EmailVerificationExpires = nil
		return errors.Join(err, s.repo.SetEmailVerificationToken(ctx, user.ID, nil, nil))
	}
	return nil
}

// AdminCandidate looks up the account CreateAdmin would promote. It returns
// nil without error when the email is free and ErrAccountDeactivated when
// it belongs to a deactivated account.
func (s *Service) AdminCandidate(ctx context.Context, email string) (*models.User, error) {
	email = NormalizeEmail(email)
	user, err := s.repo.GetActiveUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	taken, err := s.repo.EmailTaken(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return nil, ErrAccountDeactivated
	}
	return nil, nil
}

// CreateAdmin promotes the user with the given email to admin, creating
// the account first if it does not exist.
func (s *Service) CreateAdmin(ctx context.Context, params RegisterParams) (*models.User, bool, error) {
	user, err := s.AdminCandidate(ctx, params.Email)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		if user.IsAdmin() {
			return user, false, nil
		}
		if err := s.repo.SetUserRole(ctx, user.ID, models.RoleAdmin); err != nil {
			return nil, false, fmt.Errorf("failed to set admin: %w", err)
		}
		user.Role = models.RoleAdmin
		return user, false, nil
	}

	params.Role = models.RoleAdmin
	user, err = s.Register(ctx, params)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}
