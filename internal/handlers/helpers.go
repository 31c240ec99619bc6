// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"codeberg.org/oliverandrich/infographic-api/internal/apierror"
	"codeberg.org/oliverandrich/infographic-api/internal/models"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const statusSuccess = "success"

// envelope is the body of every successful response.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
	Results *int   `json:"results,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// respond writes a success envelope around data.
func respond(c echo.Context, code int, data any) error {
	return c.JSON(code, envelope{Status: statusSuccess, Data: data})
}

// respondList writes a success envelope with the number of results.
func respondList(c echo.Context, results int, data any) error {
	return c.JSON(http.StatusOK, envelope{Status: statusSuccess, Results: &results, Data: data})
}

// respondMessage writes a success envelope carrying only a message and
// optional data.
func respondMessage(c echo.Context, message string, data any) error {
	return c.JSON(http.StatusOK, envelope{Status: statusSuccess, Message: message, Data: data})
}

// noContent answers 204. The body is dropped by net/http anyway.
func noContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// bind decodes the request into req and runs the struct validation.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}

// pathID returns the path parameter name as a canonical UUID string.
func pathID(c echo.Context, name string) (string, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apierror.InvalidValue(name, raw)
	}
	return id.String(), nil
}

// queryInt parses an optional positive integer query parameter.
func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apierror.InvalidValue(name, raw)
	}
	return n, nil
}

// userData wraps a user in the allow-listed response shape.
func userData(user *models.User) map[string]any {
	return map[string]any{"user": user.Public()}
}

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name    string
	Expires time.Duration
}

func (cc CookieConfig) cookie(c echo.Context, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     cc.Name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	}
}
