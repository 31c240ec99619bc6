// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/infographic-api/internal/config"
	"codeberg.org/oliverandrich/infographic-api/internal/handlers"
	"codeberg.org/oliverandrich/infographic-api/internal/middleware"
	"codeberg.org/oliverandrich/infographic-api/internal/models"
	"codeberg.org/oliverandrich/infographic-api/internal/repository"
	authsvc "codeberg.org/oliverandrich/infographic-api/internal/services/auth"
	"codeberg.org/oliverandrich/infographic-api/internal/services/token"
	"codeberg.org/oliverandrich/infographic-api/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testBaseURL = "http://api.test"

type authFixture struct {
	e      *echo.Echo
	repo   *repository.Repository
	mailer *recordingMailer
	tokens *token.Service
	h      *handlers.AuthHandlers
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	tokens, err := token.NewService(testutil.TestJWTSecret, time.Hour)
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{BaseURL: testBaseURL},
		Auth:   config.AuthConfig{BcryptCost: bcrypt.MinCost},
	}
	mailer := &recordingMailer{}
	svc := authsvc.NewService(repo, mailer, cfg, testutil.DiscardLogger())

	return &authFixture{
		e:      testutil.NewEcho(),
		repo:   repo,
		mailer: mailer,
		tokens: tokens,
		h:      handlers.NewAuth(svc, tokens, handlers.CookieConfig{Name: "jwt", Expires: 24 * time.Hour}),
	}
}

func lastSecret(t *testing.T, urls []string, prefix string) string {
	t.Helper()
	require.NotEmpty(t, urls)
	last := urls[len(urls)-1]
	require.True(t, strings.HasPrefix(last, testBaseURL+prefix), last)
	return strings.TrimPrefix(last, testBaseURL+prefix)
}

func TestRegister(t *testing.T) {
	f := newAuthFixture(t)

	rec := call(t, f.e, f.h.Register, request{
		method: http.MethodPost,
		target: "/api/v1/auth/register",
		body: map[string]string{
			"name":     "Ada Lovelace",
			"email":    "ADA@example.com",
			"password": "violet-meadow-42",
			"gender":   "female",
		},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.Equal(t, "success", env.Status)
	user := dataField[models.PublicUser](t, env, "user")
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.False(t, user.EmailVerified)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	claims, err := f.tokens.Verify(env.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "jwt", cookies[0].Name)
	assert.Equal(t, env.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.False(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	assert.Len(t, f.mailer.verifyURLs, 1)
}

func TestRegister_Rejects(t *testing.T) {
	f := newAuthFixture(t)
	testutil.NewTestUser(t, f.repo, "taken@example.com")

	tests := []struct {
		name    string
		body    map[string]string
		message string
	}{
		{"missing name", map[string]string{"email": "a@example.com", "password": "violet-meadow-42"}, "Invalid input data."},
		{"bad email", map[string]string{"name": "A", "email": "nope", "password": "violet-meadow-42"}, "Invalid input data."},
		{"bad gender", map[string]string{"name": "A", "email": "a@example.com", "password": "violet-meadow-42", "gender": "robot"}, "Invalid input data."},
		{"short password", map[string]string{"name": "A", "email": "a@example.com", "password": "abc"}, "Invalid input data. Password must be at least 6 characters long."},
		{"taken email", map[string]string{"name": "A", "email": "Taken@example.com", "password": "violet-meadow-42"}, "Email already in use"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, f.e, f.h.Register, request{method: http.MethodPost, target: "/api/v1/auth/register", body: tt.body})

			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.True(t, strings.HasPrefix(decode(t, rec).Message, tt.message), decode(t, rec).Message)
		})
	}
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")

	tests := []struct {
		name     string
		email    string
		password string
		status   int
		message  string
	}{
		{"success", " ADA@example.com", testutil.TestPassword, http.StatusOK, ""},
		{"wrong password", "ada@example.com", "wrong-password", http.StatusUnauthorized, "Incorrect email or password"},
		{"unknown email", "nobody@example.com", testutil.TestPassword, http.StatusUnauthorized, "Incorrect email or password"},
		{"missing password", "ada@example.com", "", http.StatusBadRequest, "Please provide email and password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, f.e, f.h.Login, request{
				method: http.MethodPost,
				target: "/api/v1/auth/login",
				body:   map[string]string{"email": tt.email, "password": tt.password},
			})

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			env := decode(t, rec)
			if tt.message != "" {
				assert.Equal(t, tt.message, env.Message)
				assert.Empty(t, env.Token)
				return
			}
			assert.Equal(t, user.ID, dataField[models.PublicUser](t, env, "user").ID)
		})
	}
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t)

	rec := call(t, f.e, f.h.Logout, request{target: "/api/v1/auth/logout"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.LoggedOutValue, cookies[0].Value)
	assert.WithinDuration(t, time.Now().Add(10*time.Second), cookies[0].Expires, 2*time.Second)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newAuthFixture(t)
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")

	rec := call(t, f.e, f.h.ForgotPassword, request{
		method: http.MethodPost,
		target: "/api/v1/auth/forgot-password",
		body:   map[string]string{"email": "ada@example.com"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Token sent to email!", decode(t, rec).Message)
	secret := lastSecret(t, f.mailer.resetURLs, "/api/v1/auth/reset-password/")

	reset := func(password, confirm string) request {
		return request{
			method: http.MethodPatch,
			target: "/api/v1/auth/reset-password/" + secret,
			body:   map[string]string{"password": password, "passwordConfirm": confirm},
			params: []string{"token", secret},
		}
	}

	rec = call(t, f.e, f.h.ResetPassword, reset("amber-river-77", "amber-river-78"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Passwords are not the same!", decode(t, rec).Message)

	rec = call(t, f.e, f.h.ResetPassword, reset("amber-river-77", "amber-river-77"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode(t, rec).Token)

	rec = call(t, f.e, f.h.ResetPassword, reset("amber-river-99", "amber-river-99"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Token is invalid or has expired", decode(t, rec).Message)

	stored, err := f.repo.GetActiveUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, authsvc.VerifyPassword("amber-river-77", stored.PasswordHash))
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	rec := call(t, f.e, f.h.ForgotPassword, request{
		method: http.MethodPost,
		target: "/api/v1/auth/forgot-password",
		body:   map[string]string{"email": "nobody@example.com"},
	})

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "There is no user with that email address.", decode(t, rec).Message)
	assert.Empty(t, f.mailer.resetURLs)
}

func TestUpdatePassword_WrongCurrent(t *testing.T) {
	f := newAuthFixture(t)
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")

	rec := call(t, f.e, f.h.UpdatePassword, request{
		method: http.MethodPatch,
		target: "/api/v1/auth/update-password",
		user:   user,
		body: map[string]string{
			"currentPassword":    "not-it",
			"newPassword":        "amber-river-77",
			"newPasswordConfirm": "amber-river-77",
		},
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Your current password is wrong.", decode(t, rec).Message)
}

func TestUpdateMe(t *testing.T) {
	f := newAuthFixture(t)
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")
	testutil.NewTestUser(t, f.repo, "grace@example.com")

	t.Run("password fields are refused", func(t *testing.T) {
		rec := call(t, f.e, f.h.UpdateMe, request{
			method: http.MethodPatch,
			target: "/api/v1/users/update-me",
			user:   user,
			body:   map[string]string{"name": "Ada", "password": "amber-river-77"},
		})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "This route is not for password updates. Please use /update-password.", decode(t, rec).Message)
	})

	t.Run("role is ignored", func(t *testing.T) {
		rec := call(t, f.e, f.h.UpdateMe, request{
			method: http.MethodPatch,
			target: "/api/v1/users/update-me",
			user:   user,
			body:   map[string]string{"name": "Ada King", "role": "admin"},
		})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := dataField[models.PublicUser](t, decode(t, rec), "user")
		assert.Equal(t, "Ada King", updated.Name)
		assert.Equal(t, models.RoleUser, updated.Role)
	})

	t.Run("duplicate email", func(t *testing.T) {
		rec := call(t, f.e, f.h.UpdateMe, request{
			method: http.MethodPatch,
			target: "/api/v1/users/update-me",
			user:   user,
			body:   map[string]string{"email": "grace@example.com"},
		})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, `Duplicate field value: "grace@example.com". Please use another value!`, decode(t, rec).Message)
	})
}

func TestDeleteMe(t *testing.T) {
	f := newAuthFixture(t)
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")

	rec := call(t, f.e, f.h.DeleteMe, request{method: http.MethodDelete, target: "/api/v1/auth/delete-me", user: user})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err := f.repo.GetActiveUserByID(context.Background(), user.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestVerifyEmail(t *testing.T) {
	f := newAuthFixture(t)
	rec := call(t, f.e, f.h.Register, request{
		method: http.MethodPost,
		target: "/api/v1/auth/register",
		body:   map[string]string{"name": "Ada Lovelace", "email": "ada@example.com", "password": "violet-meadow-42"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	secret := lastSecret(t, f.mailer.verifyURLs, "/api/v1/auth/verify-email/")

	verify := request{target: "/api/v1/auth/verify-email/" + secret, params: []string{"token", secret}}

	rec = call(t, f.e, f.h.VerifyEmail, verify)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Email verified successfully!", decode(t, rec).Message)

	rec = call(t, f.e, f.h.VerifyEmail, verify)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Token is invalid or has expired", decode(t, rec).Message)

	user, err := f.repo.GetActiveUserByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	rec = call(t, f.e, f.h.ResendVerification, request{method: http.MethodPost, target: "/api/v1/auth/resend-verification", user: user})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email is already verified", decode(t, rec).Message)
}

func TestResendVerification(t *testing.T) {
	f := newAuthFixture(t)
	user := testutil.NewTestUser(t, f.repo, "ada@example.com")

	rec := call(t, f.e, f.h.ResendVerification, request{method: http.MethodPost, target: "/api/v1/auth/resend-verification", user: user})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Verification email sent!", decode(t, rec).Message)
	assert.Len(t, f.mailer.verifyURLs, 1)
}
