// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"codeberg.org/oliverandrich/infographic-api/internal/apierror"
	"codeberg.org/oliverandrich/infographic-api/internal/models"
	"codeberg.org/oliverandrich/infographic-api/internal/repository"
	authsvc "codeberg.org/oliverandrich/infographic-api/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// ErrUserNotFound is returned by the admin user routes.
var ErrUserNotFound = apierror.NotFound("No user found with that ID")

// UserHandlers contains the admin user management handlers.
type UserHandlers struct {
	repo *repository.Repository
	now  func() time.Time
}

// NewUsers creates a new UserHandlers instance.
func NewUsers(repo *repository.Repository) *UserHandlers {
	return &UserHandlers{repo: repo, now: time.Now}
}

func (h *UserHandlers) load(c echo.Context) (*models.User, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	user, err := h.repo.GetActiveUserByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// List returns all active users.
func (h *UserHandlers) List(c echo.Context) error {
	users, err := h.repo.ListActiveUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return respondList(c, len(users), map[string]any{"users": models.PublicUsers(users)})
}

// Stats counts the signups of the last year per calendar month.
func (h *UserHandlers) Stats(c echo.Context) error {
	since := h.now().UTC().AddDate(-1, 0, 0)
	stats, err := h.repo.MonthlySignups(c.Request().Context(), since)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]any{"stats": stats})
}

// Get returns a single user.
func (h *UserHandlers) Get(c echo.Context) error {
	user, err := h.load(c)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, userData(user))
}

// UpdateUserRequest is the request body for admin user changes.
type UpdateUserRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=50"`
	Email  *string `json:"email" validate:"omitempty,email"`
	Role   *string `json:"role" validate:"omitempty,oneof=user admin"`
	Active *bool   `json:"active"`
}

// Update changes name, email, role or active flag of a user.
func (h *UserHandlers) Update(c echo.Context) error {
	var req UpdateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.load(c)
	if err != nil {
		return err
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = authsvc.NormalizeEmail(*req.Email)
	}
	if req.Role != nil {
		user.Role = models.Role(*req.Role)
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := h.repo.UpdateUser(c.Request().Context(), user); err != nil {
		return err
	}
	return respond(c, http.StatusOK, userData(user))
}

// Delete deactivates a user. The record is kept.
func (h *UserHandlers) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.repo.DeactivateUser(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return noContent(c)
}
