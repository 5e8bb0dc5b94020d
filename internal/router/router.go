package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/ubaid/marketplace-auth/internal/handler"
	"github.com/ubaid/marketplace-auth/internal/middleware"
	"github.com/ubaid/marketplace-auth/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the login and refresh endpoints.  These routes
// are public: the redirect flow has no token yet, and the refresh flow
// authenticates by refresh token rather than bearer token.  The rate
// limiter wraps /refresh only, where opaque tokens could be brute forced.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, rl echo.MiddlewareFunc) {
	g := e.Group("/api/auth")
	// Browser entry point for the provider redirect flow.
	g.GET("/google/login", a.GoogleLogin)
	// Provider callback; invokes the login completion sequence.
	g.GET("/google/callback", a.GoogleCallback)
	// SPA login: the client posts a provider ID token for verification.
	g.POST("/google", a.TokenLogin)
	// Exchange a refresh token for a new access token.
	g.POST("/refresh", a.Refresh, rl)
}

// RegisterProtected wires the route/role policy table.  The gate itself
// runs globally (registered in main); the groups here only add the
// mandatory authorization stage: RequireAuth for any signed-in user,
// RequireRole for the admin surface.
func RegisterProtected(e *echo.Echo, u *handler.UserHandler, ad *handler.AdminHandler) {
	user := e.Group("/api/user")
	user.Use(middleware.RequireAuth())
	user.GET("/me", u.Me)

	admin := e.Group("/api/admin")
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("/promote", ad.Promote)

	e.GET("/api/users", u.List, middleware.RequireRole(model.RoleAdmin))
}
