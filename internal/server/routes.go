// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"time"

	"codeberg.org/oliverandrich/infographic-api/internal/config"
	"codeberg.org/oliverandrich/infographic-api/internal/handlers"
	"codeberg.org/oliverandrich/infographic-api/internal/middleware"
	"codeberg.org/oliverandrich/infographic-api/internal/models"
	"github.com/labstack/echo/v4"
)

func setupRoutes(e *echo.Echo, cfg *config.Config, deps *Deps) {
	h := handlers.New()
	ah := handlers.NewAuth(deps.Auth, deps.Tokens, handlers.CookieConfig{
		Name:    cfg.Auth.CookieName,
		Expires: time.Duration(cfg.Auth.CookieExpiresIn) * 24 * time.Hour,
	})
	uh := handlers.NewUsers(deps.Repo)
	ih := handlers.NewInfographics(deps.Repo, deps.Uploader, deps.Logger)

	authn := middleware.NewAuthenticator(deps.Tokens, deps.Repo, cfg.Auth.CookieName, deps.Logger)
	protect := authn.Authenticate
	adminOnly := middleware.RestrictTo(models.RoleAdmin)
	members := middleware.RestrictTo(models.RoleUser, models.RoleAdmin)

	e.GET("/metrics", deps.Metrics.Handler())

	api := e.Group("/api")
	api.GET("/cors-test", h.CORSTest)

	v1 := api.Group("/v1")
	v1.GET("/health", h.Health)

	// Auth
	a := v1.Group("/auth")
	a.POST("/register", ah.Register)
	a.POST("/login", ah.Login)
	a.GET("/logout", ah.Logout)
	a.POST("/forgot-password", ah.ForgotPassword)
	a.PATCH("/reset-password/:token", ah.ResetPassword)
	a.GET("/verify-email/:token", ah.VerifyEmail)
	a.POST("/resend-verification", ah.ResendVerification, protect)
	a.PATCH("/update-password", ah.UpdatePassword, protect)
	a.GET("/me", ah.Me, protect)
	a.PATCH("/update-me", ah.UpdateMe, protect)
	a.DELETE("/delete-me", ah.DeleteMe, protect)

	// Users
	u := v1.Group("/users")
	u.GET("/me", ah.Me, protect)
	u.PATCH("/update-me", ah.UpdateMe, protect)
	u.GET("", uh.List, protect, adminOnly)
	u.GET("/stats", uh.Stats, protect, adminOnly)
	u.GET("/:id", uh.Get, protect, adminOnly)
	u.PATCH("/:id", uh.Update, protect, adminOnly)
	u.DELETE("/:id", uh.Delete, protect, adminOnly)

	// Infographics
	i := v1.Group("/infographics")
	i.GET("", ih.List)
	i.POST("", ih.Create, protect, members)
	i.POST("/upload-url", ih.UploadURL, protect)
	i.GET("/user/:userId", ih.ListByUser, authn.OptionalAuth)
	i.GET("/export-check/:id", ih.ExportCheck, protect)
	i.POST("/export/:id", ih.Export, protect)
	i.GET("/:id", ih.Get, authn.OptionalAuth)
	i.PATCH("/:id", ih.Update, protect, members)
	i.DELETE("/:id", ih.Delete, protect, members)
	i.POST("/:id/like", ih.Like, protect)
	i.DELETE("/:id/like", ih.Unlike, protect)
}
