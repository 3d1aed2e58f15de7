// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/healthcare-coordination/internal/handler"
	"github.com/iliyamo/healthcare-coordination/internal/middleware"
	"github.com/iliyamo/healthcare-coordination/internal/model"
	"github.com/iliyamo/healthcare-coordination/internal/utils"
)

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth mounts /auth.  register, login, refresh and logout are
// public; me and profile require an access token of any role.  limiter
// wraps the whole group and may be nil.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, issuer *utils.TokenIssuer, limiter echo.MiddlewareFunc) {
	g := e.Group("/auth")
	if limiter != nil {
		g.Use(limiter)
	}
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := middleware.JWTAuth(issuer)
	g.GET("/me", a.Me, auth)
	g.PUT("/profile", a.UpdateProfile, auth)
}

// RegisterAdmin mounts /admin, restricted to the admin role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, issuer *utils.TokenIssuer) {
	g := e.Group("/admin", middleware.JWTAuth(issuer), middleware.RequireRole(model.RoleAdmin))
	g.GET("/users", h.ListUsers)
	g.PATCH("/users/:id/status", h.SetStatus)
	g.DELETE("/users/:id", h.DeleteUser)
}
