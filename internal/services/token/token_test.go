// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package token_test

import (
	"testing"
	"time"

	"codeberg.org/oliverandrich/infographic-api/internal/services/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-with-at-least-32-characters"

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newService(t *testing.T, c *clock) *token.Service {
	t.Helper()
	svc, err := token.NewService(secret, time.Hour, token.WithClock(c.Now))
	require.NoError(t, err)
	return svc
}

func TestNewService_Validation(t *testing.T) {
	_, err := token.NewService("", time.Hour)
	assert.Error(t, err)

	_, err = token.NewService(secret, 0)
	assert.Error(t, err)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	c := &clock{t: time.Date(2025, 5, 1, 10, 0, 0, 500_000_000, time.UTC)}
	svc := newService(t, c)

	raw, err := svc.Issue("user-42")
	require.NoError(t, err)

	claims, err := svc.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID())
	assert.Equal(t, c.t.Unix(), claims.IssuedAtTime().Unix())
}

func TestVerify_Expired(t *testing.T) {
	c := &clock{t: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newService(t, c)

	raw, err := svc.Issue("user-42")
	require.NoError(t, err)

	c.t = c.t.Add(2 * time.Hour)
	_, err = svc.Verify(raw)

	assert.ErrorIs(t, err, token.ErrTokenExpired)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestVerify_Rejects(t *testing.T) {
	c := &clock{t: time.Now()}
	svc := newService(t, c)

	good, err := svc.Issue("user-42")
	require.NoError(t, err)

	other, err := token.NewService("another-secret-with-32-characters!!", time.Hour)
	require.NoError(t, err)
	foreign, err := other.Issue("user-42")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"tampered", good[:len(good)-2] + "xx"},
		{"wrong secret", foreign},
		{"alg none", none},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.raw)
			assert.ErrorIs(t, err, token.ErrInvalidToken)
			assert.NotErrorIs(t, err, token.ErrTokenExpired)
		})
	}
}

func TestGenerateOneTimeSecret(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	secret, err := token.GenerateOneTimeSecret(now, token.ResetTokenTTL)
	require.NoError(t, err)

	assert.Len(t, secret.Plaintext, 2*token.SecretLength)
	assert.NotEqual(t, secret.Plaintext, secret.Hash)
	assert.Equal(t, token.HashOneTimeSecret(secret.Plaintext), secret.Hash)
	assert.Equal(t, now.Add(10*time.Minute), secret.ExpiresAt)

	again, err := token.GenerateOneTimeSecret(now, token.ResetTokenTTL)
	require.NoError(t, err)
	assert.NotEqual(t, secret.Plaintext, again.Plaintext)
}

func TestHashOneTimeSecret_Deterministic(t *testing.T) {
	assert.Equal(t, token.HashOneTimeSecret("abc"), token.HashOneTimeSecret("abc"))
	assert.Len(t, token.HashOneTimeSecret("abc"), 64)
}

func TestGenerateSigningKey(t *testing.T) {
	key, err := token.GenerateSigningKey(64)

	require.NoError(t, err)
	assert.Len(t, key, 128)
}
