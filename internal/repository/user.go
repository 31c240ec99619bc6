// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/infographic-api/internal/models"
	"github.com/google/uuid"
)

const userColumns = `id, name, email, phone, gender, photo, role, password_hash,
	password_changed_at, password_reset_token, password_reset_expires,
	email_verified, email_verification_token, email_verification_expires,
	active, created_at, updated_at`

// CreateUser inserts a new user. ID, timestamps and defaults are filled in.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	now := r.now()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Gender == "" {
		user.Gender = models.GenderPreferNotToSay
	}
	if user.Photo == "" {
		user.Photo = models.DefaultPhoto
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.Active = true
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		user.ID, user.Name, user.Email, user.Phone, user.Gender, user.Photo, user.Role, user.PasswordHash,
		user.PasswordChangedAt, user.PasswordResetToken, user.PasswordResetExpires,
		user.EmailVerified, user.EmailVerificationToken, user.EmailVerificationExpires,
		user.Active, user.CreatedAt, user.UpdatedAt,
	)
	return withValue(wrapError(err), "email", user.Email)
}

func (r *Repository) getActiveUser(ctx context.Context, column string, value any) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.rebind(`SELECT `+userColumns+` FROM users WHERE `+column+` = ? AND active = ?`), value, true)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetActiveUserByID retrieves an active user by ID.
func (r *Repository) GetActiveUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.getActiveUser(ctx, "id", id)
}

// GetActiveUserByEmail retrieves an active user by email address.
func (r *Repository) GetActiveUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getActiveUser(ctx, "email", email)
}

// GetActiveUserByResetToken retrieves the active user holding a password reset token hash.
func (r *Repository) GetActiveUserByResetToken(ctx context.Context, tokenHash string) (*models.User, error) {
	return r.getActiveUser(ctx, "password_reset_token", tokenHash)
}

// GetActiveUserByVerificationToken retrieves the active user holding an email verification token hash.
func (r *Repository) GetActiveUserByVerificationToken(ctx context.Context, tokenHash string) (*models.User, error) {
	return r.getActiveUser(ctx, "email_verification_token", tokenHash)
}

// EmailTaken reports whether any user, active or not, owns the email address.
func (r *Repository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, r.rebind(`SELECT count(*) FROM users WHERE email = ?`), email); err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListActiveUsers returns all active users ordered by creation date (newest first).
func (r *Repository) ListActiveUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, r.rebind(`SELECT `+userColumns+` FROM users WHERE active = ? ORDER BY created_at DESC`), true)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser saves the profile fields, role and active flag of a user.
func (r *Repository) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = r.now()
	res, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE users
		SET name = ?, email = ?, phone = ?, gender = ?, photo = ?, role = ?, active = ?, updated_at = ?
		WHERE id = ?`),
		user.Name, user.Email, user.Phone, user.Gender, user.Photo, user.Role, user.Active, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return withValue(wrapError(err), "email", user.Email)
	}
	return affected(res)
}

// UpdateUserPassword replaces the password hash and clears any pending reset token.
func (r *Repository) UpdateUserPassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE users
		SET password_hash = ?, password_changed_at = ?, password_reset_token = NULL,
			password_reset_expires = NULL, updated_at = ?
		WHERE id = ? AND active = ?`),
		passwordHash, changedAt, r.now(), id, true,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

// SetPasswordResetToken stores a reset token hash and expiry. Nil values clear them.
func (r *Repository) SetPasswordResetToken(ctx context.Context, id string, tokenHash *string, expiresAt *time.Time) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE users SET password_reset_token = ?, password_reset_expires = ?, updated_at = ?
		WHERE id = ?`),
		tokenHash, expiresAt, r.now(), id,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

// ResetPasswordWithToken sets a new password only if tokenHash is still the
// user's pending reset token, consuming it in the same statement.
// It returns ErrNotFound when the token was already consumed.
func (r *Repository) ResetPasswordWithToken(ctx context.Context, id, tokenHash, passwordHash string, changedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE users
		SET password_hash = ?, password_changed_at = ?, password_reset_token = NULL,
			password_reset_expires = NULL, updated_at = ?
		WHERE id = ? AND password_reset_token = ? AND active = ?`),
		passwordHash, changedAt, r.now(), id, tokenHash, true,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

// SetEmailVerificationToken stores a verification token hash and expiry. Nil values clear them.
func (r *Repository) SetEmailVerificationToken(ctx context.Context, id string, tokenHash *string, expiresAt *time.Time) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE users SET email_verification_token = ?, email_verification_expires = ?, updated_at = ?
		WHERE id = ?`),
		tokenHash, expiresAt, r.now(), id,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

// VerifyEmailWithToken marks the email verified only if tokenHash is still
// pending, consuming it in the same statement.
func (r *Repository) VerifyEmailWithToken(ctx context.Context, id, tokenHash string) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE users
		SET email_verified = ?, email_verification_token = NULL, email_verification_expires = NULL, updated_at = ?
		WHERE id = ? AND email_verification_token = ? AND active = ?`),
		true, r.now(), id, tokenHash, true,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

// DeactivateUser soft-deletes a user. Inactive users disappear from all default lookups.
func (r *Repository) DeactivateUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`UPDATE users SET active = ?, updated_at = ? WHERE id = ? AND active = ?`),
		false, r.now(), id, true)
	if err != nil {
		return err
	}
	return affected(res)
}

// SetUserRole changes the role of a user.
func (r *Repository) SetUserRole(ctx context.Context, id string, role models.Role) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`), role, r.now(), id)
	if err != nil {
		return err
	}
	return affected(res)
}

// CountAdmins returns the number of active admin users.
func (r *Repository) CountAdmins(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, r.rebind(`SELECT count(*) FROM users WHERE role = ? AND active = ?`), models.RoleAdmin, true)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MonthlySignups counts active users created since the given time, grouped
// by calendar month (1-12) and sorted by month.
func (r *Repository) MonthlySignups(ctx context.Context, since time.Time) ([]models.MonthlySignups, error) {
	var created []time.Time
	err := r.db.SelectContext(ctx, &created, r.rebind(`SELECT created_at FROM users WHERE active = ? AND created_at >= ?`), true, since.UTC())
	if err != nil {
		return nil, err
	}

	var counts [13]int
	for _, t := range created {
		counts[t.UTC().Month()]++
	}

	stats := []models.MonthlySignups{}
	for month := 1; month <= 12; month++ {
		if counts[month] > 0 {
			stats = append(stats, models.MonthlySignups{Month: month, Total: counts[month]})
		}
	}
	return stats, nil
}
