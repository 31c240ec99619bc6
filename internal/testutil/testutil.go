// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/infographic-api/internal/apierror"
	"codeberg.org/oliverandrich/infographic-api/internal/database"
	"codeberg.org/oliverandrich/infographic-api/internal/models"
	"codeberg.org/oliverandrich/infographic-api/internal/repository"
	"codeberg.org/oliverandrich/infographic-api/internal/validation"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plaintext password of every fixture user.
const TestPassword = "secret123"

// TestJWTSecret signs session tokens in tests.
const TestJWTSecret = "test-secret-with-at-least-32-characters"

var testPasswordHash = func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}()

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestUser creates an active user with TestPassword.
func NewTestUser(t *testing.T, repo *repository.Repository, email string) *models.User {
	t.Helper()
	return newUser(t, repo, email, models.RoleUser)
}

// NewTestAdmin creates an active admin with TestPassword.
func NewTestAdmin(t *testing.T, repo *repository.Repository, email string) *models.User {
	t.Helper()
	return newUser(t, repo, email, models.RoleAdmin)
}

func newUser(t *testing.T, repo *repository.Repository, email string, role models.Role) *models.User {
	t.Helper()
	name, _, _ := strings.Cut(email, "@")
	user := &models.User{
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: testPasswordHash,
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

// NewTestInfographic creates an infographic owned by ownerID.
func NewTestInfographic(t *testing.T, repo *repository.Repository, ownerID, title string, public bool) *models.Infographic {
	t.Helper()
	ig := &models.Infographic{
		UserID:      ownerID,
		Title:       title,
		DesignState: models.Document(`{"width":800,"height":600,"layers":[{"type":"text","value":"hello"}]}`),
		IsPublic:    public,
		Tags:        models.StringList{"charts"},
		Category:    "business",
	}
	require.NoError(t, repo.CreateInfographic(context.Background(), ig))
	return ig
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewEcho returns an Echo instance with request validation and the JSON
// error handler installed, in development mode.
func NewEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validation.New()
	e.HTTPErrorHandler = apierror.NewHandler(false, DiscardLogger())
	return e
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

// Bearer sets the Authorization header of req.
func Bearer(req *http.Request, token string) *http.Request {
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	return req
}
