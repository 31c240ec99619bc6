// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

const (
	GenderMale           = "male"
	GenderFemale         = "female"
	GenderOther          = "other"
	GenderPreferNotToSay = "prefer-not-to-say"
)

const DefaultPhoto = "default.jpg"

// User is an account record. It is never serialized directly; use Public.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID                       string     `db:"id"`
	Name                     string     `db:"name"`
	Email                    string     `db:"email"`
	Phone                    *string    `db:"phone"`
	Gender                   string     `db:"gender"`
	Photo                    string     `db:"photo"`
	Role                     Role       `db:"role"`
	PasswordHash             string     `db:"password_hash"`
	PasswordChangedAt        *time.Time `db:"password_changed_at"`
	PasswordResetToken       *string    `db:"password_reset_token"`
	PasswordResetExpires     *time.Time `db:"password_reset_expires"`
	EmailVerified            bool       `db:"email_verified"`
	EmailVerificationToken   *string    `db:"email_verification_token"`
	EmailVerificationExpires *time.Time `db:"email_verification_expires"`
	Active                   bool       `db:"active"`
	CreatedAt                time.Time  `db:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasRole reports whether the user's role is one of roles.
func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// ChangedPasswordAfter reports whether the password was changed after a
// token issued at issuedAt. Both sides compare at second granularity.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > issuedAt.Unix()
}

// PublicUser is the allow-listed JSON shape of a user.
type PublicUser struct { //nolint:govet // fieldalignment: readability over optimization
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	Gender        string    `json:"gender"`
	Photo         string    `json:"photo"`
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Public returns the fields of u that may leave the service.
func (u *User) Public() PublicUser {
	p := PublicUser{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Gender:        u.Gender,
		Photo:         u.Photo,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	return p
}

// PublicUsers maps Public over users.
func PublicUsers(users []User) []PublicUser {
	out := make([]PublicUser, len(users))
	for i := range users {
		out[i] = users[i].Public()
	}
	return out
}

// MonthlySignups is one bucket of the signup statistics.
type MonthlySignups struct {
	Month int `json:"month"`
	Total int `json:"total"`
}
