package auth

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/handlers"
	mwjwt "github.com/Zaramlt59/TMS-sub001/middleware/jwt"
	"github.com/Zaramlt59/TMS-sub001/services/audit"
	authservice "github.com/Zaramlt59/TMS-sub001/services/auth"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"github.com/Zaramlt59/TMS-sub001/services/refreshtoken"
	"github.com/Zaramlt59/TMS-sub001/services/users"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type Handler struct {
	auth      *authservice.Service
	users     *users.Service
	sessions  *refreshtoken.Service
	cookies   *config.CookieConfig
	validator *handlers.Validator
	logger    *logging.Service
}

func NewHandler(
	cfg *config.Config,
	authService *authservice.Service,
	userService *users.Service,
	sessions *refreshtoken.Service,
	validator *handlers.Validator,
	logger *logging.Service,
) *Handler {
	return &Handler{
		auth:      authService,
		users:     userService,
		sessions:  sessions,
		cookies:   &cfg.Cookie,
		validator: validator,
		logger:    logger,
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=128"`
	DeviceID string `json:"device_id" validate:"max=255"`
}

type refreshRequest struct {
	DeviceID string `json:"device_id" validate:"max=255"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,max=128"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,max=128"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	ExpiresAt   time.Time   `json:"expires_at"`
	SessionID   uint        `json:"session_id"`
	User        *users.User `json:"user,omitempty"`
}

func meta(c echo.Context) audit.Meta {
	return audit.Meta{IPAddress: c.RealIP(), UserAgent: c.Request().UserAgent()}
}

func (h *Handler) tokens(c echo.Context, result *authservice.TokenResult) tokenResponse {
	h.setSessionCookies(c, result.RefreshToken, result.CSRFToken, result.RefreshExpiresAt)
	return tokenResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(result.AccessExpiresAt).Seconds()),
		ExpiresAt:   result.AccessExpiresAt,
		SessionID:   result.SessionID,
		User:        result.User,
	}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if ok, err := handlers.BindAndValidate(c, h.validator, &req); !ok {
		return err
	}

	m := meta(c)
	result, err := h.auth.Login(c.Request().Context(), authservice.LoginRequest{
		Username:  req.Username,
		Password:  req.Password,
		DeviceID:  req.DeviceID,
		IPAddress: m.IPAddress,
		UserAgent: m.UserAgent,
	})
	if err != nil {
		return h.fail(c, err)
	}

	return handlers.OK(c, "Login successful", h.tokens(c, result))
}

// Refresh handles POST /api/auth/refresh. The refresh token and CSRF value
// come from cookies, the echoed CSRF value from the configured header.
func (h *Handler) Refresh(c echo.Context) error {
	var req refreshRequest
	if ok, err := handlers.BindAndValidate(c, h.validator, &req); !ok {
		return err
	}

	m := meta(c)
	result, err := h.auth.Refresh(c.Request().Context(), authservice.RefreshRequest{
		RefreshToken: h.refreshCookie(c),
		CSRFCookie:   h.cookieValue(c, h.cookies.CSRFName),
		CSRFHeader:   c.Request().Header.Get(h.cookies.CSRFHeader),
		DeviceID:     req.DeviceID,
		IPAddress:    m.IPAddress,
		UserAgent:    m.UserAgent,
	})
	if err != nil {
		return h.fail(c, err)
	}

	return handlers.OK(c, "Token refreshed", h.tokens(c, result))
}

// Logout handles POST /api/auth/logout. It succeeds even without a session.
func (h *Handler) Logout(c echo.Context) error {
	m := meta(c)
	if token := h.refreshCookie(c); token != "" {
		err := h.auth.Logout(c.Request().Context(), authservice.LogoutRequest{
			RefreshToken: token,
			ActorID:      mwjwt.GetUserID(c),
			IPAddress:    m.IPAddress,
			UserAgent:    m.UserAgent,
		})
		if err != nil {
			return h.fail(c, err)
		}
	}

	h.clearSessionCookies(c)
	return handlers.OK(c, "Logged out", nil)
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(c echo.Context) error {
	user, err := h.users.FindByID(c.Request().Context(), mwjwt.GetUserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	if user == nil || !user.IsActive {
		return handlers.Fail(c, http.StatusNotFound, "User not found")
	}
	return handlers.OK(c, "", user)
}

// RequestPasswordReset handles POST /api/auth/password-reset/request. The
// response does not depend on whether the address is registered.
func (h *Handler) RequestPasswordReset(c echo.Context) error {
	var req resetRequest
	if ok, err := handlers.BindAndValidate(c, h.validator, &req); !ok {
		return err
	}

	m := meta(c)
	if err := h.auth.RequestPasswordReset(c.Request().Context(), req.Email, m.IPAddress, m.UserAgent); err != nil {
		return h.fail(c, err)
	}
	return handlers.OK(c, "If the address is registered, a reset link has been sent", nil)
}

// ConfirmPasswordReset handles POST /api/auth/password-reset/confirm.
func (h *Handler) ConfirmPasswordReset(c echo.Context) error {
	var req resetConfirmRequest
	if ok, err := handlers.BindAndValidate(c, h.validator, &req); !ok {
		return err
	}

	m := meta(c)
	if err := h.auth.ResetPassword(c.Request().Context(), req.Token, req.Password, m.IPAddress, m.UserAgent); err != nil {
		return h.fail(c, err)
	}

	h.clearSessionCookies(c)
	return handlers.OK(c, "Password has been reset", nil)
}

// ChangePassword handles POST /api/auth/password/change.
func (h *Handler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if ok, err := handlers.BindAndValidate(c, h.validator, &req); !ok {
		return err
	}

	m := meta(c)
	revoked, err := h.auth.ChangePassword(c.Request().Context(), authservice.ChangePasswordRequest{
		UserID:              mwjwt.GetUserID(c),
		CurrentPassword:     req.CurrentPassword,
		NewPassword:         req.NewPassword,
		CurrentRefreshToken: h.refreshCookie(c),
		IPAddress:           m.IPAddress,
		UserAgent:           m.UserAgent,
	})
	if errors.Is(err, authservice.ErrInvalidCredentials) {
		return handlers.Fail(c, http.StatusBadRequest, "Current password is incorrect")
	}
	if err != nil {
		return h.fail(c, err)
	}

	return handlers.OK(c, "Password changed", map[string]int64{"sessions_revoked": revoked})
}

// ListSessions handles GET /api/auth/sessions.
func (h *Handler) ListSessions(c echo.Context) error {
	sessions, err := h.sessions.ListActiveSessions(c.Request().Context(), mwjwt.GetUserID(c), h.refreshCookie(c))
	if err != nil {
		return h.fail(c, err)
	}
	return handlers.OK(c, "", sessions)
}

// GetSession handles GET /api/auth/sessions/:id.
func (h *Handler) GetSession(c echo.Context) error {
	id, ok := sessionID(c)
	if !ok {
		return handlers.Fail(c, http.StatusBadRequest, "Invalid session id")
	}

	session, err := h.sessions.GetSessionInfo(c.Request().Context(), id, mwjwt.GetUserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	if session == nil {
		return handlers.Fail(c, http.StatusNotFound, "Session not found")
	}
	return handlers.OK(c, "", session)
}

// RevokeSession handles DELETE /api/auth/sessions/:id. Revoking an owned
// session that is already revoked succeeds; unknown or foreign ids are 404.
func (h *Handler) RevokeSession(c echo.Context) error {
	id, ok := sessionID(c)
	if !ok {
		return handlers.Fail(c, http.StatusBadRequest, "Invalid session id")
	}

	revoked, err := h.auth.RevokeSession(c.Request().Context(), mwjwt.GetUserID(c), id, meta(c))
	if err != nil {
		return h.fail(c, err)
	}
	if !revoked {
		return handlers.Fail(c, http.StatusNotFound, "Session not found")
	}
	return handlers.OK(c, "Session revoked", nil)
}

// RevokeOtherSessions handles POST /api/auth/sessions/revoke-others.
func (h *Handler) RevokeOtherSessions(c echo.Context) error {
	revoked, err := h.auth.LogoutOthers(c.Request().Context(), mwjwt.GetUserID(c), h.refreshCookie(c), meta(c))
	if err != nil {
		return h.fail(c, err)
	}
	return handlers.OK(c, "Other sessions revoked", map[string]int64{"sessions_revoked": revoked})
}

func sessionID(c echo.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// fail maps service outcomes to HTTP responses.
func (h *Handler) fail(c echo.Context, err error) error {
	var locked *authservice.LockedError
	switch {
	case errors.As(err, &locked):
		c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(locked.RetryAfterSeconds()))
		return handlers.Fail(c, http.StatusTooManyRequests, "Too many failed login attempts, please try again later")
	case errors.Is(err, authservice.ErrInvalidCredentials):
		return handlers.Fail(c, http.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, authservice.ErrCSRFMismatch):
		return handlers.Fail(c, http.StatusForbidden, "CSRF token mismatch")
	case errors.Is(err, authservice.ErrInvalidRefreshToken):
		h.clearSessionCookies(c)
		return handlers.Fail(c, http.StatusUnauthorized, "Invalid or expired refresh token")
	case errors.Is(err, authservice.ErrResetTokenInvalid):
		return handlers.Fail(c, http.StatusBadRequest, "Invalid or expired password reset token")
	case errors.Is(err, users.ErrWeakPassword):
		return handlers.Fail(c, http.StatusBadRequest, err.Error())
	}

	if h.logger != nil {
		h.logger.Error("auth request failed",
			zap.String("path", c.Path()),
			zap.String("ip", c.RealIP()),
			zap.Error(err))
	}
	return handlers.Internal(c)
}
