package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/services/audit"
	jwtservice "github.com/Zaramlt59/TMS-sub001/services/jwt"
	"github.com/Zaramlt59/TMS-sub001/services/lockout"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"github.com/Zaramlt59/TMS-sub001/services/refreshtoken"
	"github.com/Zaramlt59/TMS-sub001/services/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const csrfTokenBytes = 32

type MailService interface {
	SendPasswordReset(ctx context.Context, to, name, link string) error
}

type Service struct {
	config  *config.Config
	users   *users.Service
	tokens  *refreshtoken.Service
	jwt     *jwtservice.Service
	lockout *lockout.Tracker
	audit   *audit.Service
	mail    MailService
	logger  *logging.Service
}

func NewService(
	cfg *config.Config,
	userService *users.Service,
	tokens *refreshtoken.Service,
	jwtService *jwtservice.Service,
	tracker *lockout.Tracker,
	auditService *audit.Service,
	mail MailService,
	logger *logging.Service,
) *Service {
	return &Service{
		config:  cfg,
		users:   userService,
		tokens:  tokens,
		jwt:     jwtService,
		lockout: tracker,
		audit:   auditService,
		mail:    mail,
		logger:  logger,
	}
}

// Login authenticates a username and password and opens a new session.
// Unknown users, inactive users and wrong passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenResult, error) {
	meta := audit.Meta{IPAddress: req.IPAddress, UserAgent: req.UserAgent}

	if status := s.lockout.IsLocked(req.Username, req.IPAddress); status.Locked {
		s.audit.LogAuth(ctx, audit.ActionLoginFailed, 0, meta, false, ErrAccountLocked.Error(),
			map[string]any{"username": req.Username, "reason": "locked"})
		return nil, &LockedError{Remaining: status.Remaining}
	}

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	passwordOK := s.users.VerifyPassword(user, req.Password)
	if user == nil || !user.IsActive || !passwordOK {
		return nil, s.loginFailed(ctx, req, user, meta)
	}

	s.lockout.ClearFailures(req.Username, req.IPAddress)

	result, err := s.openSession(ctx, user, refreshtoken.IssueOptions{
		DeviceID:  req.DeviceID,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil && s.logger != nil {
		s.logger.Warn("failed to update last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	s.audit.LogAuth(ctx, audit.ActionLogin, user.ID, meta, true, "",
		map[string]any{"session_id": result.SessionID, "device_id": req.DeviceID})

	if s.logger != nil {
		s.logger.Info("user logged in",
			zap.Uint("user_id", user.ID),
			zap.Uint("session_id", result.SessionID),
			zap.String("ip", req.IPAddress))
	}
	return result, nil
}

func (s *Service) loginFailed(ctx context.Context, req LoginRequest, user *users.User, meta audit.Meta) error {
	status := s.lockout.RegisterFailure(req.Username, req.IPAddress)

	reason := "invalid_credentials"
	var userID uint
	if user != nil {
		userID = user.ID
		if !user.IsActive {
			reason = "inactive"
		}
	}

	s.audit.LogAuth(ctx, audit.ActionLoginFailed, userID, meta, false, ErrInvalidCredentials.Error(),
		map[string]any{"username": req.Username, "reason": reason, "failures": status.Failures})

	if s.logger != nil {
		s.logger.Warn("login failed",
			zap.String("username", req.Username),
			zap.String("ip", req.IPAddress),
			zap.String("reason", reason),
			zap.Bool("locked", status.Locked))
	}

	if status.Locked {
		return &LockedError{Remaining: status.Remaining}
	}
	return ErrInvalidCredentials
}

func (s *Service) openSession(ctx context.Context, user *users.User, opts refreshtoken.IssueOptions) (*TokenResult, error) {
	issued, err := s.tokens.Issue(ctx, user.ID, s.tokens.DefaultTTL(), opts)
	if err != nil {
		return nil, err
	}

	result, err := s.completeTokens(user, issued)
	if err != nil {
		s.discard(ctx, issued.Token)
		return nil, err
	}
	return result, nil
}

func (s *Service) completeTokens(user *users.User, issued *refreshtoken.IssuedToken) (*TokenResult, error) {
	csrf, err := generateCSRFToken()
	if err != nil {
		return nil, err
	}

	access, err := s.jwt.Sign(identityFor(user))
	if err != nil {
		return nil, err
	}

	return &TokenResult{
		AccessToken:      access,
		AccessExpiresAt:  time.Now().UTC().Add(s.jwt.AccessExpiry()),
		RefreshToken:     issued.Token,
		RefreshExpiresAt: issued.ExpiresAt,
		CSRFToken:        csrf,
		SessionID:        issued.SessionID,
		User:             user,
	}, nil
}

// discard revokes a token that was issued but never handed out.
func (s *Service) discard(ctx context.Context, token string) {
	if err := s.tokens.Revoke(ctx, token); err != nil && s.logger != nil {
		s.logger.Error("failed to revoke undelivered refresh token", zap.Error(err))
	}
}

// Refresh rotates the presented refresh token. The CSRF pair is checked
// before any token state is read.
func (s *Service) Refresh(ctx context.Context, req RefreshRequest) (*TokenResult, error) {
	meta := audit.Meta{IPAddress: req.IPAddress, UserAgent: req.UserAgent}

	if !csrfMatches(req.CSRFCookie, req.CSRFHeader) {
		s.audit.LogSecurity(ctx, audit.ActionSuspiciousActivity, 0, audit.ResourceAuth, "csrf", meta,
			map[string]string{"reason": "csrf_mismatch"})
		return nil, ErrCSRFMismatch
	}
	if req.RefreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	rotated, err := s.tokens.Rotate(ctx, req.RefreshToken, s.tokens.DefaultTTL(), refreshtoken.IssueOptions{
		DeviceID:  req.DeviceID,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		var inactive *refreshtoken.InactiveTokenError
		if errors.As(err, &inactive) {
			s.rejectedRefresh(ctx, inactive, meta)
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	user, err := s.users.FindByID(ctx, rotated.UserID)
	if err != nil {
		s.discard(ctx, rotated.Token)
		return nil, err
	}
	if user == nil || !user.IsActive {
		s.discard(ctx, rotated.Token)
		if s.logger != nil {
			s.logger.Warn("refresh rejected for unavailable user", zap.Uint("user_id", rotated.UserID))
		}
		return nil, ErrInvalidRefreshToken
	}

	result, err := s.completeTokens(user, &rotated.IssuedToken)
	if err != nil {
		s.discard(ctx, rotated.Token)
		return nil, err
	}
	return result, nil
}

func (s *Service) rejectedRefresh(ctx context.Context, inactive *refreshtoken.InactiveTokenError, meta audit.Meta) {
	if s.logger != nil {
		s.logger.Info("refresh token rejected",
			zap.String("reason", string(inactive.Reason)),
			zap.Uint("user_id", inactive.UserID),
			zap.Uint("session_id", inactive.SessionID))
	}

	if inactive.Reason != refreshtoken.ReasonReplayed {
		return
	}
	s.audit.LogSecurity(ctx, audit.ActionSuspiciousActivity, inactive.UserID, audit.ResourceAuth,
		fmt.Sprintf("session_%d", inactive.SessionID), meta,
		map[string]string{"reason": "refresh_token_replay"})
}

// Logout revokes the presented token. Missing or already revoked tokens are
// not an error.
func (s *Service) Logout(ctx context.Context, req LogoutRequest) error {
	if err := s.tokens.Revoke(ctx, req.RefreshToken); err != nil {
		return err
	}

	if req.ActorID > 0 {
		s.audit.LogAuth(ctx, audit.ActionLogout, req.ActorID,
			audit.Meta{IPAddress: req.IPAddress, UserAgent: req.UserAgent}, true, "", nil)
	}
	return nil
}

// LogoutOthers revokes every session of the user except the current one.
func (s *Service) LogoutOthers(ctx context.Context, userID uint, currentToken string, meta audit.Meta) (int64, error) {
	revoked, err := s.tokens.RevokeAllForUser(ctx, userID, currentToken)
	if err != nil {
		return 0, err
	}

	s.audit.LogAuth(ctx, audit.ActionLogout, userID, meta, true, "",
		map[string]any{"scope": "others", "sessions_revoked": revoked})
	return revoked, nil
}

// RevokeSession ends one session owned by userID. It reports false when the
// session does not exist or belongs to someone else.
func (s *Service) RevokeSession(ctx context.Context, userID, sessionID uint, meta audit.Meta) (bool, error) {
	ok, err := s.tokens.RevokeSession(ctx, sessionID, userID)
	if err != nil || !ok {
		return ok, err
	}

	s.audit.LogAuth(ctx, audit.ActionLogout, userID, meta, true, "",
		map[string]any{"scope": "session", "session_id": sessionID})
	return true, nil
}

// RequestPasswordReset mails a reset link when the address belongs to an
// active account. The outcome is the same either way.
func (s *Service) RequestPasswordReset(ctx context.Context, email, ip, userAgent string) error {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if user == nil || !user.IsActive {
		if s.logger != nil {
			s.logger.Info("password reset requested for unknown or inactive account", zap.String("ip", ip))
		}
		return nil
	}

	token, err := s.jwt.SignReset(user.ID, passwordFingerprint(user.PasswordHash))
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s%s?token=%s",
		strings.TrimRight(s.config.App.URL, "/"),
		s.config.Auth.PasswordResetPath,
		url.QueryEscape(token))

	if err := s.mail.SendPasswordReset(ctx, user.Email, user.Username, link); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to send password reset email", zap.Uint("user_id", user.ID), zap.Error(err))
		}
		return nil
	}

	if s.logger != nil {
		s.logger.Info("password reset email sent", zap.Uint("user_id", user.ID))
	}
	return nil
}

// ResetPassword consumes a reset token, sets the new password and revokes
// every session the user has.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword, ip, userAgent string) error {
	claims, err := s.jwt.VerifyReset(token)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("password reset token rejected", zap.String("ip", ip), zap.Error(err))
		}
		return fmt.Errorf("%w: %w", ErrResetTokenInvalid, err)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if user == nil || !user.IsActive {
		return ErrResetTokenInvalid
	}
	if !claims.Matches(passwordFingerprint(user.PasswordHash)) {
		return fmt.Errorf("%w: %w", ErrResetTokenInvalid, jwtservice.ErrStaleResetToken)
	}

	revoked, err := s.replacePassword(ctx, user.ID, newPassword, "")
	if err != nil {
		return err
	}

	s.audit.LogAuth(ctx, audit.ActionPasswordReset, user.ID,
		audit.Meta{IPAddress: ip, UserAgent: userAgent}, true, "",
		map[string]any{"sessions_revoked": revoked})

	if s.logger != nil {
		s.logger.Info("password reset completed", zap.Uint("user_id", user.ID), zap.Int64("sessions_revoked", revoked))
	}
	return nil
}

// ChangePassword updates the password of a signed-in user and revokes every
// session except the one making the request. Wrong current passwords count
// toward a lockout keyed by the user id.
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) (int64, error) {
	meta := audit.Meta{IPAddress: req.IPAddress, UserAgent: req.UserAgent}
	lockKey := changePasswordLockKey(req.UserID)

	if status := s.lockout.IsLocked(lockKey, changePasswordScope); status.Locked {
		s.audit.LogAuth(ctx, audit.ActionPasswordChange, req.UserID, meta, false, ErrAccountLocked.Error(), nil)
		return 0, &LockedError{Remaining: status.Remaining}
	}

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		return 0, err
	}
	if user == nil || !s.users.VerifyPassword(user, req.CurrentPassword) {
		status := s.lockout.RegisterFailure(lockKey, changePasswordScope)
		s.audit.LogAuth(ctx, audit.ActionPasswordChange, req.UserID, meta, false, "current password mismatch",
			map[string]any{"failures": status.Failures})
		if status.Locked {
			return 0, &LockedError{Remaining: status.Remaining}
		}
		return 0, ErrInvalidCredentials
	}
	s.lockout.ClearFailures(lockKey, changePasswordScope)

	revoked, err := s.replacePassword(ctx, user.ID, req.NewPassword, req.CurrentRefreshToken)
	if err != nil {
		return 0, err
	}

	s.audit.LogAuth(ctx, audit.ActionPasswordChange, user.ID, meta, true, "",
		map[string]any{"sessions_revoked": revoked})
	return revoked, nil
}

const changePasswordScope = "password_change"

func changePasswordLockKey(userID uint) string {
	return fmt.Sprintf("user_%d", userID)
}

// replacePassword stores the new password and revokes the user's sessions,
// except keepToken, in one transaction. Neither change survives if the other fails.
func (s *Service) replacePassword(ctx context.Context, userID uint, password, keepToken string) (int64, error) {
	var revoked int64
	err := s.users.Transaction(ctx, func(tx *gorm.DB, txUsers *users.Service) error {
		if err := txUsers.UpdatePassword(ctx, userID, password); err != nil {
			return err
		}

		n, err := s.tokens.WithTx(tx).RevokeAllForUser(ctx, userID, keepToken)
		if err != nil {
			return fmt.Errorf("failed to revoke sessions after password change: %w", err)
		}
		revoked = n
		return nil
	})
	if err != nil {
		if s.logger != nil && !errors.Is(err, users.ErrWeakPassword) {
			s.logger.Error("password not replaced", zap.Uint("user_id", userID), zap.Error(err))
		}
		return 0, err
	}
	return revoked, nil
}

func identityFor(user *users.User) jwtservice.Identity {
	return jwtservice.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     string(user.Role),
		Email:    user.Email,
		SchoolID: user.SchoolID,
		District: user.District,
		Block:    user.Block,
	}
}

func csrfMatches(cookie, header string) bool {
	if cookie == "" || header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) == 1
}

func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// passwordFingerprint changes whenever the stored hash does.
func passwordFingerprint(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:16])
}
