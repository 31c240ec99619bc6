// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	// SecretLength is the number of random bytes in a one-time secret.
	SecretLength = 32
	// SigningKeyLength is the number of random bytes in a generated JWT secret.
	SigningKeyLength = 64
	// ResetTokenTTL is how long password reset tokens are valid.
	ResetTokenTTL = 10 * time.Minute
	// VerificationTokenTTL is how long email verification tokens are valid.
	VerificationTokenTTL = 24 * time.Hour
)

// OneTimeSecret is a freshly generated secret. Plaintext goes to the user,
// only Hash is stored.
type OneTimeSecret struct {
	Plaintext string
	Hash      string
	ExpiresAt time.Time
}

// GenerateOneTimeSecret creates a random hex secret valid for ttl from now.
func GenerateOneTimeSecret(now time.Time, ttl time.Duration) (*OneTimeSecret, error) {
	raw := securecookie.GenerateRandomKey(SecretLength)
	if raw == nil {
		return nil, errors.New("failed to generate random bytes")
	}

	plaintext := hex.EncodeToString(raw)
	return &OneTimeSecret{
		Plaintext: plaintext,
		Hash:      HashOneTimeSecret(plaintext),
		ExpiresAt: now.Add(ttl),
	}, nil
}

// HashOneTimeSecret computes the SHA256 hash of a secret.
func HashOneTimeSecret(secret string) string {
	hash := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:])
}

// GenerateSigningKey returns a random hex key suitable as a JWT secret.
func GenerateSigningKey(length int) (string, error) {
	raw := securecookie.GenerateRandomKey(length)
	if raw == nil {
		return "", errors.New("failed to generate random bytes")
	}
	return hex.EncodeToString(raw), nil
}
