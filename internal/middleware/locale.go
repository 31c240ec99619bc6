// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"codeberg.org/oliverandrich/infographic-api/internal/i18n"
	"github.com/labstack/echo/v4"
)

// Locale negotiates the language of mails triggered by the request and
// echoes it in Content-Language.
func Locale() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			lang := i18n.Negotiate(c.Request().Header.Get("Accept-Language"))
			c.Response().Header().Set("Content-Language", lang.String())
			c.SetRequest(c.Request().WithContext(i18n.WithLanguage(c.Request().Context(), lang)))
			return next(c)
		}
	}
}
