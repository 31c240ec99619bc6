// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/infographic-api/internal/models"
	"codeberg.org/oliverandrich/infographic-api/internal/repository"
	"codeberg.org/oliverandrich/infographic-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	user := testutil.NewTestUser(t, repo, "ada@example.com")

	assert.NotEmpty(t, user.ID)
	assert.True(t, user.Active)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, models.DefaultPhoto, user.Photo)
	assert.Equal(t, models.GenderPreferNotToSay, user.Gender)
	assert.NotZero(t, user.CreatedAt)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestUser(t, repo, "ada@example.com")

	err := repo.CreateUser(context.Background(), &models.User{
		Name:         "Other Ada",
		Email:        "ada@example.com",
		PasswordHash: "x",
	})

	var dup *repository.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Field)
	assert.Equal(t, "ada@example.com", dup.Value)
}

func TestGetActiveUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	created := testutil.NewTestUser(t, repo, "ada@example.com")

	byID, err := repo.GetActiveUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, byID.Email)

	byEmail, err := repo.GetActiveUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = repo.GetActiveUserByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeactivateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "ada@example.com")
	testutil.NewTestUser(t, repo, "grace@example.com")

	require.NoError(t, repo.DeactivateUser(ctx, user.ID))

	_, err := repo.GetActiveUserByID(ctx, user.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetActiveUserByEmail(ctx, user.Email)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	users, err := repo.ListActiveUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "grace@example.com", users[0].Email)

	// The address stays reserved.
	taken, err := repo.EmailTaken(ctx, user.Email)
	require.NoError(t, err)
	assert.True(t, taken)

	assert.ErrorIs(t, repo.DeactivateUser(ctx, user.ID), repository.ErrNotFound)
}

func TestUpdateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "ada@example.com")
	testutil.NewTestUser(t, repo, "grace@example.com")

	user.Name = "Ada King"
	user.Role = models.RoleAdmin
	require.NoError(t, repo.UpdateUser(ctx, user))

	stored, err := repo.GetActiveUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada King", stored.Name)
	assert.True(t, stored.IsAdmin())

	user.Email = "grace@example.com"
	var dup *repository.DuplicateError
	require.ErrorAs(t, repo.UpdateUser(ctx, user), &dup)
	assert.Equal(t, "grace@example.com", dup.Value)
}

func TestResetPasswordWithToken_ConsumesToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "ada@example.com")

	hash := "reset-hash"
	expires := time.Now().Add(10 * time.Minute).UTC()
	require.NoError(t, repo.SetPasswordResetToken(ctx, user.ID, &hash, &expires))

	holder, err := repo.GetActiveUserByResetToken(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, user.ID, holder.ID)

	changedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.ResetPasswordWithToken(ctx, user.ID, hash, "new-hash", changedAt))

	// A second use of the same token matches nothing.
	err = repo.ResetPasswordWithToken(ctx, user.ID, hash, "other-hash", changedAt)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	stored, err := repo.GetActiveUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", stored.PasswordHash)
	assert.Nil(t, stored.PasswordResetToken)
	assert.Nil(t, stored.PasswordResetExpires)
	require.NotNil(t, stored.PasswordChangedAt)
	assert.True(t, changedAt.Equal(stored.PasswordChangedAt.UTC()))
}

func TestUpdateUserPassword_ClearsResetToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "ada@example.com")

	hash := "reset-hash"
	expires := time.Now().Add(10 * time.Minute).UTC()
	require.NoError(t, repo.SetPasswordResetToken(ctx, user.ID, &hash, &expires))
	require.NoError(t, repo.UpdateUserPassword(ctx, user.ID, "new-hash", time.Now().UTC()))

	_, err := repo.GetActiveUserByResetToken(ctx, hash)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestVerifyEmailWithToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "ada@example.com")

	hash := "verify-hash"
	expires := time.Now().Add(24 * time.Hour).UTC()
	require.NoError(t, repo.SetEmailVerificationToken(ctx, user.ID, &hash, &expires))

	holder, err := repo.GetActiveUserByVerificationToken(ctx, hash)
	require.NoError(t, err)
	require.NoError(t, repo.VerifyEmailWithToken(ctx, holder.ID, hash))
	assert.ErrorIs(t, repo.VerifyEmailWithToken(ctx, holder.ID, hash), repository.ErrNotFound)

	stored, err := repo.GetActiveUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
	assert.Nil(t, stored.EmailVerificationToken)
}

func TestSetUserRoleAndCountAdmins(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "ada@example.com")
	testutil.NewTestAdmin(t, repo, "root@example.com")

	count, err := repo.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repo.SetUserRole(ctx, user.ID, models.RoleAdmin))

	count, err = repo.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMonthlySignups(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "a@example.com")
	testutil.NewTestUser(t, repo, "b@example.com")
	gone := testutil.NewTestUser(t, repo, "c@example.com")
	require.NoError(t, repo.DeactivateUser(ctx, gone.ID))

	stats, err := repo.MonthlySignups(ctx, time.Now().AddDate(-1, 0, 0))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int(time.Now().UTC().Month()), stats[0].Month)
	assert.Equal(t, 2, stats[0].Total)

	stats, err = repo.MonthlySignups(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stats)
}
