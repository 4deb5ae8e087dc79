package handlers

import (
	"github.com/Zaramlt59/TMS-sub001/config"
	mwjwt "github.com/Zaramlt59/TMS-sub001/middleware/jwt"
	"github.com/Zaramlt59/TMS-sub001/middleware/ratelimit"
	"github.com/Zaramlt59/TMS-sub001/services/audit"
	jwtservice "github.com/Zaramlt59/TMS-sub001/services/jwt"
	"github.com/labstack/echo/v4"
)

// Guards are the route middlewares shared by the API handlers. Rejections by
// RequireJWT and RequireRole are recorded as security audit entries.
type Guards struct {
	RequireJWT  echo.MiddlewareFunc
	Identify    echo.MiddlewareFunc
	RateLimit   echo.MiddlewareFunc
	RequireRole func(roles ...string) echo.MiddlewareFunc
}

func NewGuards(cfg *config.Config, jwtService *jwtservice.Service, auditService *audit.Service, store ratelimit.Store) Guards {
	hooks := mwjwt.Config{
		OnUnauthorized: func(c echo.Context, err error) {
			auditService.LogSecurity(c.Request().Context(), audit.ActionUnauthorizedAccess, 0,
				audit.ResourceSecurity, c.Path(), requestMeta(c),
				map[string]string{"method": c.Request().Method, "reason": err.Error()})
		},
		OnForbidden: func(c echo.Context, claims *jwtservice.Claims) {
			auditService.LogSecurity(c.Request().Context(), audit.ActionPermissionDenied, claims.UserID,
				audit.ResourceSecurity, c.Path(), requestMeta(c),
				map[string]string{"method": c.Request().Method, "role": claims.Role})
		},
	}

	return Guards{
		RequireJWT: mwjwt.RequireJWTWithConfig(jwtService, hooks),
		Identify:   mwjwt.Identify(jwtService),
		RateLimit:  ratelimit.ForConfig(&cfg.RateLimit, store),
		RequireRole: func(roles ...string) echo.MiddlewareFunc {
			return mwjwt.RequireRoleWithConfig(hooks, roles...)
		},
	}
}

func requestMeta(c echo.Context) audit.Meta {
	return audit.Meta{IPAddress: c.RealIP(), UserAgent: c.Request().UserAgent()}
}
