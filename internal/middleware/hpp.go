// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"github.com/labstack/echo/v4"
)

// ParameterPollution collapses repeated query parameters to their last
// value. Parameters in whitelist may repeat.
func ParameterPollution(whitelist []string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(whitelist))
	for _, name := range whitelist {
		allowed[name] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.URL.RawQuery == "" {
				return next(c)
			}

			q := req.URL.Query()
			polluted := false
			for key, values := range q {
				if len(values) < 2 {
					continue
				}
				if _, ok := allowed[key]; ok {
					continue
				}
				q[key] = values[len(values)-1:]
				polluted = true
			}
			if polluted {
				req.URL.RawQuery = q.Encode()
			}

			return next(c)
		}
	}
}
