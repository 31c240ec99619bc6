// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers implements the JSON API endpoints.
package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Handlers contains the handlers that need no storage.
type Handlers struct {
	now func() time.Time
}

// New creates a new Handlers instance.
func New() *Handlers {
	return &Handlers{now: time.Now}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "API is running",
	})
}

// CORSTest echoes the request origin so frontends can check their CORS
// setup.
func (h *Handlers) CORSTest(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message":   "CORS is working!",
		"origin":    c.Request().Header.Get(echo.HeaderOrigin),
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
