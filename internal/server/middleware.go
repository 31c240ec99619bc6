// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"
	"net/http"

	"codeberg.org/oliverandrich/infographic-api/internal/config"
	"codeberg.org/oliverandrich/infographic-api/internal/middleware"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// hstsMaxAge is 180 days, in seconds.
const hstsMaxAge = 15552000

// setupMiddleware installs the request pipeline. Order matters: nothing
// reads the body before the rate limiter and the size limit ran, and
// sanitizing happens before any handler.
func setupMiddleware(e *echo.Echo, cfg *config.Config, deps *Deps) {
	e.Pre(echomw.RemoveTrailingSlash())

	e.Use(deps.Metrics.Middleware())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(securityHeaders())
	if !cfg.IsProduction() {
		e.Use(middleware.RequestLogger(deps.Logger))
	}
	e.Use(middleware.RateLimiter(deps.RateLimitStore, deps.Logger))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dK", cfg.Server.MaxBodySize)))
	e.Use(middleware.Sanitize())
	e.Use(middleware.ParameterPollution(cfg.Server.HPPWhitelist))
	e.Use(corsMiddleware(cfg))
	e.Use(echomw.Gzip())
	e.Use(middleware.Locale())
}

func securityHeaders() echo.MiddlewareFunc {
	return echomw.SecureWithConfig(echomw.SecureConfig{
		XSSProtection:         "0",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            hstsMaxAge,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
	})
}

func corsMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORS.Origins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodPatch,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderContentType,
			echo.HeaderAuthorization,
			echo.HeaderXRequestedWith,
			echo.HeaderAccept,
			echo.HeaderOrigin,
		},
		AllowCredentials: true,
		// Browsers refuse a literal * on credentialed requests, so the
		// development wildcard reflects the caller's origin instead.
		UnsafeWildcardOriginWithAllowCredentials: !cfg.IsProduction(),
	})
}

// ipExtractor picks the client address used for rate limiting. Production
// runs behind a proxy that sets X-Forwarded-For.
func ipExtractor(cfg *config.Config) echo.IPExtractor {
	if cfg.IsProduction() {
		return echo.ExtractIPFromXFFHeader()
	}
	return echo.ExtractIPDirect()
}
