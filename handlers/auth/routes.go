package auth

import (
	"github.com/Zaramlt59/TMS-sub001/handlers"
	"github.com/Zaramlt59/TMS-sub001/middleware/csrf"
	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts the handlers on g, normally the /api/auth group.
func (h *Handler) RegisterRoutes(g *echo.Group, guards handlers.Guards) {
	// Logout is cookie-authenticated; without a refresh cookie there is nothing to forge.
	logoutCSRF := csrf.WithSkipper(h.cookies, func(c echo.Context) bool {
		return h.refreshCookie(c) == ""
	})

	g.POST("/login", h.Login, guards.RateLimit)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", h.Logout, logoutCSRF, guards.Identify)
	g.POST("/password-reset/request", h.RequestPasswordReset, guards.RateLimit)
	g.POST("/password-reset/confirm", h.ConfirmPasswordReset, guards.RateLimit)

	g.GET("/me", h.Me, guards.RequireJWT)
	g.POST("/password/change", h.ChangePassword, guards.RequireJWT)
	g.GET("/sessions", h.ListSessions, guards.RequireJWT)
	g.GET("/sessions/:id", h.GetSession, guards.RequireJWT)
	g.DELETE("/sessions/:id", h.RevokeSession, guards.RequireJWT)
	g.POST("/sessions/revoke-others", h.RevokeOtherSessions, guards.RequireJWT)
}
