// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/infographic-api/internal/apierror"
	"codeberg.org/oliverandrich/infographic-api/internal/auth"
	"codeberg.org/oliverandrich/infographic-api/internal/models"
	"codeberg.org/oliverandrich/infographic-api/internal/repository"
	"codeberg.org/oliverandrich/infographic-api/internal/services/token"
	"github.com/labstack/echo/v4"
)

// LegacyCookieName is the session cookie name older clients still send.
const LegacyCookieName = "token"

// LoggedOutValue replaces the session cookie on logout.
const LoggedOutValue = "loggedout"

var (
	ErrNotLoggedIn     = apierror.Unauthorized("You are not logged in. Please log in to get access.")
	ErrInvalidSession  = apierror.Unauthorized("Invalid or expired token. Please log in again.")
	ErrUserGone        = apierror.Unauthorized("The user belonging to this token no longer exists.")
	ErrPasswordChanged = apierror.Unauthorized("User recently changed password! Please log in again.")
	ErrForbidden       = apierror.Forbidden("You do not have permission to perform this action")
)

// UserLoader loads users for authenticated requests.
type UserLoader interface {
	GetActiveUserByID(ctx context.Context, id string) (*models.User, error)
}

// TokenVerifier checks session tokens.
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// Authenticator resolves the session token of a request to a user.
type Authenticator struct {
	tokens      TokenVerifier
	users       UserLoader
	cookieNames []string
	logger      *slog.Logger
}

func NewAuthenticator(tokens TokenVerifier, users UserLoader, cookieName string, logger *slog.Logger) *Authenticator {
	names := []string{cookieName}
	if cookieName != LegacyCookieName {
		names = append(names, LegacyCookieName)
	}
	return &Authenticator{
		tokens:      tokens,
		users:       users,
		cookieNames: names,
		logger:      logger,
	}
}

// Authenticate rejects requests without a valid session and attaches the
// user to the request context otherwise.
func (a *Authenticator) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := a.extractToken(c)
		if raw == "" {
			return ErrNotLoggedIn
		}

		user, err := a.resolve(c, raw)
		if err != nil {
			return err
		}

		c.SetRequest(c.Request().WithContext(auth.WithUser(c.Request().Context(), user)))
		return next(c)
	}
}

// OptionalAuth attaches the user when the request carries a valid session
// and continues anonymously otherwise.
func (a *Authenticator) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if raw := a.extractToken(c); raw != "" {
			if user, err := a.resolve(c, raw); err == nil {
				c.SetRequest(c.Request().WithContext(auth.WithUser(c.Request().Context(), user)))
			}
		}
		return next(c)
	}
}

// resolve verifies raw and loads its user with a single store lookup.
func (a *Authenticator) resolve(c echo.Context, raw string) (*models.User, error) {
	claims, err := a.tokens.Verify(raw)
	if err != nil {
		a.logger.Debug("token_rejected", "error", err, "ip", c.RealIP())
		return nil, ErrInvalidSession
	}

	user, err := a.users.GetActiveUserByID(c.Request().Context(), claims.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserGone
		}
		return nil, err
	}

	if user.ChangedPasswordAfter(claims.IssuedAtTime()) {
		return nil, ErrPasswordChanged
	}

	return user, nil
}

// extractToken reads the bearer header first and falls back to cookies.
func (a *Authenticator) extractToken(c echo.Context) string {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		scheme, raw, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(raw)
		}
	}

	for _, name := range a.cookieNames {
		cookie, err := c.Cookie(name)
		if err == nil && cookie.Value != "" && cookie.Value != LoggedOutValue {
			return cookie.Value
		}
	}
	return ""
}

// RestrictTo allows only users holding one of roles. It must run after
// Authenticate.
func RestrictTo(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := auth.GetUser(c.Request().Context())
			if user == nil || !user.HasRole(roles...) {
				return ErrForbidden
			}
			return next(c)
		}
	}
}
