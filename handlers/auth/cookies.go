package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

func (h *Handler) sameSite() http.SameSite {
	switch strings.ToLower(h.cookies.SameSite) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

func (h *Handler) cookie(name, value string, httpOnly bool, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cookies.Path,
		Domain:   h.cookies.Domain,
		Secure:   h.cookies.Secure,
		HttpOnly: httpOnly,
		SameSite: h.sameSite(),
	}
	if value == "" {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		return cookie
	}
	cookie.Expires = expires
	cookie.MaxAge = max(int(time.Until(expires).Seconds()), 1)
	return cookie
}

// setSessionCookies writes the refresh cookie (script-hidden) and the CSRF
// pairing cookie (script-readable) with the refresh token's lifetime.
func (h *Handler) setSessionCookies(c echo.Context, refreshToken, csrfToken string, expires time.Time) {
	c.SetCookie(h.cookie(h.cookies.RefreshName, refreshToken, true, expires))
	c.SetCookie(h.cookie(h.cookies.CSRFName, csrfToken, false, expires))
}

func (h *Handler) clearSessionCookies(c echo.Context) {
	c.SetCookie(h.cookie(h.cookies.RefreshName, "", true, time.Time{}))
	c.SetCookie(h.cookie(h.cookies.CSRFName, "", false, time.Time{}))
}

func (h *Handler) cookieValue(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *Handler) refreshCookie(c echo.Context) string {
	return h.cookieValue(c, h.cookies.RefreshName)
}
