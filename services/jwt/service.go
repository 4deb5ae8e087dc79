package jwt

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken     = errors.New("invalid JWT token")
	ErrExpiredToken     = errors.New("JWT token has expired")
	ErrMalformedToken   = errors.New("malformed JWT token")
	ErrInvalidSignature = errors.New("invalid JWT token signature")
	ErrWrongTokenType   = errors.New("JWT token has the wrong type")
	ErrStaleResetToken  = errors.New("password reset token no longer matches the account")
)

const (
	TokenTypeAccess = "access"
	PurposeReset    = "pwd_reset"
)

// Identity is what an access token asserts about its bearer.
type Identity struct {
	UserID   uint
	Username string
	Role     string
	Email    string
	SchoolID *uint
	District string
	Block    string
}

type Claims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Email     string `json:"email"`
	SchoolID  *uint  `json:"school_id,omitempty"`
	District  string `json:"district,omitempty"`
	Block     string `json:"block,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Identity {
	return Identity{
		UserID:   c.UserID,
		Username: c.Username,
		Role:     c.Role,
		Email:    c.Email,
		SchoolID: c.SchoolID,
		District: c.District,
		Block:    c.Block,
	}
}

// ResetClaims authorize a single password change. Fingerprint is derived from
// the password hash at issue time.
type ResetClaims struct {
	UserID      uint   `json:"user_id"`
	Purpose     string `json:"purpose"`
	Fingerprint string `json:"fp"`
	jwt.RegisteredClaims
}

// Matches reports whether the token was issued for the given fingerprint.
func (c *ResetClaims) Matches(fingerprint string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Fingerprint), []byte(fingerprint)) == 1
}

type Service struct {
	config *config.Config
	logger *logging.Service
	now    func() time.Time
}

func NewService(cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) AccessExpiry() time.Duration {
	return s.config.JWT.AccessExpiry
}

func (s *Service) registered(subject uint, expiry time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Issuer:    s.config.JWT.Issuer,
		Subject:   strconv.FormatUint(uint64(subject), 10),
		Audience:  []string{s.config.JWT.Issuer},
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		NotBefore: jwt.NewNumericDate(now),
		IssuedAt:  jwt.NewNumericDate(now),
	}
}

func (s *Service) sign(claims jwt.Claims, kind string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.JWT.SecretKey))
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to sign JWT token", zap.String("kind", kind), zap.Error(err))
		}
		return "", fmt.Errorf("failed to generate %s token: %w", kind, err)
	}
	return tokenString, nil
}

func (s *Service) Sign(id Identity) (string, error) {
	claims := Claims{
		UserID:           id.UserID,
		Username:         id.Username,
		Role:             id.Role,
		Email:            id.Email,
		SchoolID:         id.SchoolID,
		District:         id.District,
		Block:            id.Block,
		TokenType:        TokenTypeAccess,
		RegisteredClaims: s.registered(id.UserID, s.config.JWT.AccessExpiry),
	}
	return s.sign(claims, "access")
}

func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess || claims.UserID == 0 {
		if s.logger != nil {
			s.logger.Warn("rejected non-access token", zap.String("token_type", claims.TokenType))
		}
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (s *Service) SignReset(userID uint, fingerprint string) (string, error) {
	expiry := s.config.Auth.PasswordResetExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	claims := ResetClaims{
		UserID:           userID,
		Purpose:          PurposeReset,
		Fingerprint:      fingerprint,
		RegisteredClaims: s.registered(userID, expiry),
	}
	return s.sign(claims, "password reset")
}

func (s *Service) VerifyReset(tokenString string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeReset || claims.UserID == 0 {
		if s.logger != nil {
			s.logger.Warn("rejected token without reset purpose")
		}
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (s *Service) parse(tokenString string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() == "none" {
			return nil, errors.New("'none' algorithm is not allowed")
		}
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok || token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected algorithm: expected HS256, got %v", token.Header["alg"])
		}
		return []byte(s.config.JWT.SecretKey), nil
	},
		jwt.WithIssuer(s.config.JWT.Issuer),
		jwt.WithAudience(s.config.JWT.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err == nil {
		return nil
	}

	if s.logger != nil {
		s.logger.Debug("JWT token validation failed", zap.Error(err))
	}

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	default:
		return ErrInvalidToken
	}
}
