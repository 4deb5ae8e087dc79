package csrf

import (
	"crypto/subtle"
	"net/http"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Middleware enforces the double-submit pairing: the CSRF header must equal
// the CSRF cookie. Safe methods pass through.
func Middleware(cfg *config.CookieConfig) echo.MiddlewareFunc {
	return WithSkipper(cfg, middleware.DefaultSkipper)
}

func WithSkipper(cfg *config.CookieConfig, skipper middleware.Skipper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}

			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			if !Valid(c, cfg) {
				return echo.NewHTTPError(http.StatusForbidden, "CSRF token mismatch")
			}
			return next(c)
		}
	}
}

// Valid reports whether the request carries a matching cookie and header.
func Valid(c echo.Context, cfg *config.CookieConfig) bool {
	header := c.Request().Header.Get(cfg.CSRFHeader)
	cookie, err := c.Cookie(cfg.CSRFName)
	if err != nil || cookie.Value == "" || header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) == 1
}
