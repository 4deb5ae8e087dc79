package jwt

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/Zaramlt59/TMS-sub001/services/jwt"
	"github.com/labstack/echo/v4"
)

const (
	UserIDKey = "_jwt_user_id"
	ClaimsKey = "_jwt_claims"
)

// Config hooks let callers observe rejected requests, for example to audit them.
type Config struct {
	OnUnauthorized func(c echo.Context, err error)
	OnForbidden    func(c echo.Context, claims *jwt.Claims)
}

func RequireJWT(jwtService *jwt.Service) echo.MiddlewareFunc {
	return RequireJWTWithConfig(jwtService, Config{})
}

func RequireJWTWithConfig(jwtService *jwt.Service, cfg Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := bearerToken(c)
			if err != nil {
				if cfg.OnUnauthorized != nil {
					cfg.OnUnauthorized(c, err)
				}
				return err
			}

			claims, err := jwtService.Verify(tokenString)
			if err != nil {
				if cfg.OnUnauthorized != nil {
					cfg.OnUnauthorized(c, err)
				}
				switch {
				case errors.Is(err, jwt.ErrExpiredToken):
					return echo.NewHTTPError(http.StatusUnauthorized, "JWT token has expired")
				case errors.Is(err, jwt.ErrMalformedToken):
					return echo.NewHTTPError(http.StatusUnauthorized, "Malformed JWT token")
				case errors.Is(err, jwt.ErrInvalidSignature):
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid JWT token signature")
				default:
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid JWT token")
				}
			}

			c.Set(UserIDKey, claims.UserID)
			c.Set(ClaimsKey, claims)

			return next(c)
		}
	}
}

// Identify attaches claims when the request carries a valid bearer token.
// It never rejects a request.
func Identify(jwtService *jwt.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if tokenString, err := bearerToken(c); err == nil {
				if claims, err := jwtService.Verify(tokenString); err == nil {
					c.Set(UserIDKey, claims.UserID)
					c.Set(ClaimsKey, claims)
				}
			}
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if tokenString == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "JWT token required")
	}
	return tokenString, nil
}

// RequireRole must run after RequireJWT.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return RequireRoleWithConfig(Config{}, roles...)
}

func RequireRoleWithConfig(cfg Config, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := GetClaims(c)
			if claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}

			if !slices.Contains(roles, claims.Role) {
				if cfg.OnForbidden != nil {
					cfg.OnForbidden(c, claims)
				}
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}

func GetUserID(c echo.Context) uint {
	if userID, ok := c.Get(UserIDKey).(uint); ok {
		return userID
	}
	return 0
}

func GetClaims(c echo.Context) *jwt.Claims {
	if claims, ok := c.Get(ClaimsKey).(*jwt.Claims); ok {
		return claims
	}
	return nil
}
