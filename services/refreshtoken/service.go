package refreshtoken

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	config *config.Config
	logger *logging.Service
	now    func() time.Time
}

func NewService(db *gorm.DB, cfg *config.Config, logger *logging.Service) *Service {
	if logger != nil {
		logger.Info("initializing refresh token service",
			zap.Duration("token_expiry", cfg.RefreshToken.Expiry),
			zap.Int("token_length", cfg.RefreshToken.TokenLength),
			zap.Duration("retention", cfg.RefreshToken.Retention))
	}

	return &Service{
		db:     db,
		config: cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a copy of the service that runs its queries on tx.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	clone := *s
	clone.db = tx
	return &clone
}

func (s *Service) DefaultTTL() time.Duration {
	return s.config.RefreshToken.Expiry
}

func (s *Service) Issue(ctx context.Context, userID uint, ttl time.Duration, opts IssueOptions) (*IssuedToken, error) {
	token, record, err := s.newRecord(userID, ttl, opts)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if s.logger != nil {
			s.logger.Error("failed to store refresh token", zap.Uint("user_id", userID), zap.Error(err))
		}
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("refresh token issued",
			zap.Uint("user_id", userID),
			zap.Uint("session_id", record.ID),
			zap.Time("expires_at", record.ExpiresAt))
	}

	return &IssuedToken{
		Token:     token,
		SessionID: record.ID,
		UserID:    userID,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Rotate exchanges an active token for a new one bound to the same user. The
// successor is inserted and the predecessor conditionally revoked in one
// transaction; if another rotation got there first the revoke matches no row
// and the whole transaction rolls back.
func (s *Service) Rotate(ctx context.Context, oldToken string, ttl time.Duration, opts IssueOptions) (*RotationResult, error) {
	oldHash := hashToken(oldToken)
	var result *RotationResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current RefreshToken
		err := tx.Where("token_hash = ?", oldHash).First(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &InactiveTokenError{Reason: ReasonNotFound}
		}
		if err != nil {
			return fmt.Errorf("failed to load refresh token: %w", err)
		}

		now := s.now()
		if reason, inactive := inactiveReason(&current, now); inactive {
			return &InactiveTokenError{Reason: reason, UserID: current.UserID, SessionID: current.ID}
		}

		if opts.DeviceID == "" {
			opts.DeviceID = current.DeviceID
		}
		if opts.IPAddress == "" {
			opts.IPAddress = current.IPAddress
		}
		if opts.UserAgent == "" {
			opts.UserAgent = current.UserAgent
		}

		token, next, err := s.newRecord(current.UserID, ttl, opts)
		if err != nil {
			return err
		}
		if err := tx.Create(next).Error; err != nil {
			return fmt.Errorf("failed to store rotated refresh token: %w", err)
		}

		revoked := tx.Model(&RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL AND expires_at > ?", current.ID, now).
			Updates(map[string]any{
				"revoked_at":   now,
				"replaced_by":  next.TokenHash,
				"last_used_at": now,
			})
		if revoked.Error != nil {
			return fmt.Errorf("failed to revoke rotated refresh token: %w", revoked.Error)
		}
		if revoked.RowsAffected == 0 {
			return &InactiveTokenError{Reason: ReasonReplayed, UserID: current.UserID, SessionID: current.ID}
		}

		result = &RotationResult{
			IssuedToken: IssuedToken{
				Token:     token,
				SessionID: next.ID,
				UserID:    next.UserID,
				ExpiresAt: next.ExpiresAt,
			},
			PreviousSessionID: current.ID,
		}
		return nil
	})

	if err != nil {
		var inactive *InactiveTokenError
		if errors.As(err, &inactive) {
			if s.logger != nil {
				s.logger.Warn("refresh token rotation rejected",
					zap.String("reason", string(inactive.Reason)),
					zap.Uint("user_id", inactive.UserID),
					zap.Uint("session_id", inactive.SessionID))
			}
			return nil, err
		}
		if s.logger != nil {
			s.logger.Error("refresh token rotation failed", zap.Error(err))
		}
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("refresh token rotated",
			zap.Uint("user_id", result.UserID),
			zap.Uint("old_session_id", result.PreviousSessionID),
			zap.Uint("new_session_id", result.SessionID))
	}
	return result, nil
}

func inactiveReason(t *RefreshToken, now time.Time) (InactiveReason, bool) {
	switch {
	case t.RevokedAt != nil && t.ReplacedBy != nil:
		return ReasonReplayed, true
	case t.RevokedAt != nil:
		return ReasonRevoked, true
	case !t.ExpiresAt.After(now):
		return ReasonExpired, true
	}
	return "", false
}

// Revoke marks a single token revoked. Unknown or already revoked tokens are a no-op.
func (s *Service) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	result := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashToken(token)).
		Update("revoked_at", s.now())
	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("failed to revoke refresh token", zap.Error(result.Error))
		}
		return fmt.Errorf("failed to revoke refresh token: %w", result.Error)
	}
	return nil
}

// RevokeAllForUser revokes every active token of the user except excludeToken,
// which may be empty.
func (s *Service) RevokeAllForUser(ctx context.Context, userID uint, excludeToken string) (int64, error) {
	now := s.now()
	query := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now)
	if excludeToken != "" {
		query = query.Where("token_hash <> ?", hashToken(excludeToken))
	}

	result := query.Update("revoked_at", now)
	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("failed to revoke user refresh tokens", zap.Uint("user_id", userID), zap.Error(result.Error))
		}
		return 0, fmt.Errorf("failed to revoke user refresh tokens: %w", result.Error)
	}

	if s.logger != nil {
		s.logger.Info("revoked user refresh tokens",
			zap.Uint("user_id", userID),
			zap.Int64("count", result.RowsAffected),
			zap.Bool("kept_current", excludeToken != ""))
	}
	return result.RowsAffected, nil
}

// ListActiveSessions returns the user's active sessions, newest first.
func (s *Service) ListActiveSessions(ctx context.Context, userID uint, currentToken string) ([]SessionView, error) {
	now := s.now()

	var records []RefreshToken
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Order("created_at DESC, id DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	currentHash := ""
	if currentToken != "" {
		currentHash = hashToken(currentToken)
	}

	views := make([]SessionView, 0, len(records))
	for i := range records {
		views = append(views, toView(&records[i], currentHash, now))
	}
	return views, nil
}

// RevokeSession revokes a session owned by userID. It returns false when the
// session does not exist or belongs to someone else.
func (s *Service) RevokeSession(ctx context.Context, sessionID, userID uint) (bool, error) {
	record, err := s.findOwned(ctx, sessionID, userID)
	if err != nil || record == nil {
		return false, err
	}
	if record.RevokedAt != nil {
		return true, nil
	}

	if err := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", record.ID).
		Update("revoked_at", s.now()).Error; err != nil {
		return false, fmt.Errorf("failed to revoke session: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("session revoked", zap.Uint("user_id", userID), zap.Uint("session_id", sessionID))
	}
	return true, nil
}

func (s *Service) GetSessionInfo(ctx context.Context, sessionID, userID uint) (*SessionView, error) {
	record, err := s.findOwned(ctx, sessionID, userID)
	if err != nil || record == nil {
		return nil, err
	}
	view := toView(record, "", s.now())
	return &view, nil
}

func (s *Service) findOwned(ctx context.Context, sessionID, userID uint) (*RefreshToken, error) {
	var record RefreshToken
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", sessionID, userID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &record, nil
}

// PurgeExpired hard-deletes records that expired or were revoked before the cutoff.
func (s *Service) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", before, before).
		Delete(&RefreshToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge refresh tokens: %w", result.Error)
	}

	if s.logger != nil && result.RowsAffected > 0 {
		s.logger.Info("purged refresh tokens", zap.Int64("count", result.RowsAffected), zap.Time("before", before))
	}
	return result.RowsAffected, nil
}

func (s *Service) newRecord(userID uint, ttl time.Duration, opts IssueOptions) (string, *RefreshToken, error) {
	if ttl <= 0 {
		ttl = s.config.RefreshToken.Expiry
	}

	token, err := s.generateSecureToken()
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to generate secure refresh token", zap.Error(err))
		}
		return "", nil, ErrTokenGenerationFailed
	}

	now := s.now()
	return token, &RefreshToken{
		UserID:     userID,
		TokenHash:  hashToken(token),
		DeviceID:   opts.DeviceID,
		IPAddress:  opts.IPAddress,
		UserAgent:  truncate(opts.UserAgent, 512),
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		LastUsedAt: &now,
	}, nil
}

func (s *Service) generateSecureToken() (string, error) {
	length := s.config.RefreshToken.TokenLength
	if length < 16 {
		length = 32
	}
	tokenBytes := make([]byte, length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(tokenBytes), nil
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func toView(t *RefreshToken, currentHash string, now time.Time) SessionView {
	info := parseUserAgent(t.UserAgent)
	return SessionView{
		ID:         t.ID,
		DeviceID:   t.DeviceID,
		IPAddress:  t.IPAddress,
		UserAgent:  t.UserAgent,
		Browser:    info.Browser,
		OS:         info.OS,
		Device:     info.Device,
		CreatedAt:  t.CreatedAt,
		ExpiresAt:  t.ExpiresAt,
		LastUsedAt: t.LastUsedAt,
		RevokedAt:  t.RevokedAt,
		Active:     t.Active(now),
		Current:    currentHash != "" && t.TokenHash == currentHash,
	}
}
