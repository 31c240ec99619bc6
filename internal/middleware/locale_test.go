// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/infographic-api/internal/i18n"
	"codeberg.org/oliverandrich/infographic-api/internal/middleware"
	"codeberg.org/oliverandrich/infographic-api/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestLocale(t *testing.T) {
	e := testutil.NewEcho()
	e.Use(middleware.Locale())
	e.GET("/lang", func(c echo.Context) error {
		return c.String(http.StatusOK, i18n.Language(c.Request().Context()).String())
	})

	tests := []struct {
		header string
		want   string
	}{
		{"de-DE,de;q=0.9", "de"},
		{"es", "en"},
		{"", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/lang", nil)
			req.Header.Set("Accept-Language", tt.header)
			rec := httptest.NewRecorder()

			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Body.String())
			assert.Equal(t, tt.want, rec.Header().Get("Content-Language"))
		})
	}
}
