// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"time"

	"codeberg.org/oliverandrich/infographic-api/internal/auth"
	"codeberg.org/oliverandrich/infographic-api/internal/middleware"
	"codeberg.org/oliverandrich/infographic-api/internal/models"
	authsvc "codeberg.org/oliverandrich/infographic-api/internal/services/auth"
	"codeberg.org/oliverandrich/infographic-api/internal/services/token"
	"github.com/labstack/echo/v4"
)

// logoutCookieTTL is how long the replacement cookie lives after logout.
const logoutCookieTTL = 10 * time.Second

// AuthHandlers contains handlers for authentication and the account
// itself.
type AuthHandlers struct {
	auth   *authsvc.Service
	tokens *token.Service
	cookie CookieConfig
	now    func() time.Time
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(svc *authsvc.Service, tokens *token.Service, cookie CookieConfig) *AuthHandlers {
	return &AuthHandlers{
		auth:   svc,
		tokens: tokens,
		cookie: cookie,
		now:    time.Now,
	}
}

// sendToken issues a session token for user, sets it as cookie and
// returns it together with the user.
func (h *AuthHandlers) sendToken(c echo.Context, code int, user *models.User) error {
	raw, err := h.tokens.Issue(user.ID)
	if err != nil {
		return err
	}
	c.SetCookie(h.cookie.cookie(c, raw, h.now().Add(h.cookie.Expires)))
	return c.JSON(code, envelope{
		Status: statusSuccess,
		Token:  raw,
		Data:   userData(user),
	})
}

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Gender   string `json:"gender" validate:"omitempty,oneof=male female other prefer-not-to-say"`
	Password string `json:"password" validate:"required"`
}

// Register creates an account and logs it in.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.auth.Register(c.Request().Context(), authsvc.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Gender:   req.Gender,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return h.sendToken(c, http.StatusCreated, user)
}

// LoginRequest is the request body for logging in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks the credentials and issues a session token.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.sendToken(c, http.StatusOK, user)
}

// Logout overwrites the session cookie with a short-lived placeholder.
func (h *AuthHandlers) Logout(c echo.Context) error {
	c.SetCookie(h.cookie.cookie(c, middleware.LoggedOutValue, h.now().Add(logoutCookieTTL)))
	return c.JSON(http.StatusOK, envelope{Status: statusSuccess})
}

// ForgotPasswordRequest is the request body for requesting a reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword mails a password reset link.
func (h *AuthHandlers) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	msg, err := h.auth.ForgotPassword(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return respondMessage(c, msg, nil)
}

// ResetPasswordRequest is the request body for setting a new password
// with a reset token.
type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// ResetPassword consumes a reset token and logs the user in.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.auth.ResetPassword(c.Request().Context(), c.Param("token"), req.Password, req.PasswordConfirm)
	if err != nil {
		return err
	}
	return h.sendToken(c, http.StatusOK, user)
}

// UpdatePasswordRequest is the request body for changing the password.
type UpdatePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	NewPasswordConfirm string `json:"newPasswordConfirm"`
}

// UpdatePassword changes the password of the current user. Sessions
// issued before the change stop working.
func (h *AuthHandlers) UpdatePassword(c echo.Context) error {
	var req UpdatePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.auth.UpdatePassword(c.Request().Context(), auth.GetUser(c.Request().Context()),
		req.CurrentPassword, req.NewPassword, req.NewPasswordConfirm)
	if err != nil {
		return err
	}
	return h.sendToken(c, http.StatusOK, user)
}

// Me returns the current user.
func (h *AuthHandlers) Me(c echo.Context) error {
	return respond(c, http.StatusOK, userData(auth.GetUser(c.Request().Context())))
}

// UpdateMeRequest is the request body for profile changes. The password
// fields only exist to be rejected.
type UpdateMeRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=50"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"passwordConfirm"`
}

// UpdateMe changes name and email of the current user.
func (h *AuthHandlers) UpdateMe(c echo.Context) error {
	var req UpdateMeRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Password != "" || req.PasswordConfirm != "" {
		return authsvc.ErrNotPasswordRoute
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := h.auth.UpdateMe(ctx, auth.GetUser(ctx), authsvc.UpdateMeParams{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, userData(user))
}

// DeleteMe deactivates the current user.
func (h *AuthHandlers) DeleteMe(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.auth.DeleteMe(ctx, auth.GetUser(ctx)); err != nil {
		return err
	}
	return noContent(c)
}

// VerifyEmail consumes an email verification token.
func (h *AuthHandlers) VerifyEmail(c echo.Context) error {
	if err := h.auth.VerifyEmail(c.Request().Context(), c.Param("token")); err != nil {
		return err
	}
	return respondMessage(c, "Email verified successfully!", nil)
}

// ResendVerification mails a fresh verification link to the current user.
func (h *AuthHandlers) ResendVerification(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.auth.ResendVerification(ctx, auth.GetUser(ctx)); err != nil {
		return err
	}
	return respondMessage(c, "Verification email sent!", nil)
}
