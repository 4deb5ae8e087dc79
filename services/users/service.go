package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUserExists            = errors.New("username or email already registered")
	ErrInvalidRole           = errors.New("invalid role")
	ErrWeakPassword          = errors.New("password does not meet policy")
	ErrPasswordHashingFailed = errors.New("failed to hash password")
)

type Service struct {
	db        *gorm.DB
	config    *config.Config
	logger    *logging.Service
	dummyHash []byte
}

func NewService(db *gorm.DB, cfg *config.Config, logger *logging.Service) (*Service, error) {
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		cfg.Auth.BcryptCost = bcrypt.DefaultCost
	}

	// Hash of a random value nobody knows, compared against for unknown users.
	seed := make([]byte, 16)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to seed dummy hash: %w", err)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(seed)), cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to build dummy hash: %w", err)
	}

	return &Service{
		db:        db,
		config:    cfg,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

// Transaction runs fn inside one database transaction. fn receives a copy of
// the service bound to the transaction.
func (s *Service) Transaction(ctx context.Context, fn func(tx *gorm.DB, users *Service) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, s.WithTx(tx))
	})
}

func (s *Service) WithTx(tx *gorm.DB) *Service {
	clone := *s
	clone.db = tx
	return &clone
}

// FindByUsername matches case-insensitively. A missing user is (nil, nil).
func (s *Service) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.findOne(ctx, "LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username)))
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) FindByID(ctx context.Context, id uint) (*User, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *Service) findOne(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func (s *Service) VerifyPassword(user *User, password string) bool {
	if user == nil {
		s.VerifyDummy(password)
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// VerifyDummy spends the same bcrypt work as a real comparison and always fails.
func (s *Service) VerifyDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

func (s *Service) ValidatePassword(password string) error {
	if len(password) < s.config.Auth.MinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, s.config.Auth.MinLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	var missing []string
	if s.config.Auth.RequireUpper && !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if s.config.Auth.RequireLower && !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if s.config.Auth.RequireNumber && !hasNumber {
		missing = append(missing, "one number")
	}
	if s.config.Auth.RequireSpecial && !hasSpecial {
		missing = append(missing, "one special character")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: must contain at least %s", ErrWeakPassword, strings.Join(missing, ", "))
	}
	return nil
}

func (s *Service) HashPassword(password string) (string, error) {
	if err := s.ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Auth.BcryptCost)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("password hashing failed", zap.Error(err))
		}
		return "", ErrPasswordHashingFailed
	}
	return string(hash), nil
}

func (s *Service) Create(ctx context.Context, req CreateUser) (*User, error) {
	if req.Role == "" {
		req.Role = RoleTeacher
	}
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, req.Role)
	}

	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).
		Where("LOWER(username) = ? OR LOWER(email) = ?", strings.ToLower(username), email).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing users: %w", err)
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &User{
		Username:          username,
		Email:             email,
		PasswordHash:      hash,
		Role:              req.Role,
		SchoolID:          req.SchoolID,
		District:          req.District,
		Block:             req.Block,
		IsActive:          true,
		PasswordChangedAt: &now,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("user created",
			zap.Uint("user_id", user.ID),
			zap.String("username", user.Username),
			zap.String("role", string(user.Role)))
	}
	return user, nil
}

func (s *Service) UpdateLastLogin(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Update("last_login_at", time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (s *Service) UpdatePassword(ctx context.Context, id uint, password string) error {
	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"password_hash":       hash,
			"password_changed_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	if s.logger != nil {
		s.logger.Info("password updated", zap.Uint("user_id", id))
	}
	return nil
}

func (s *Service) SetActive(ctx context.Context, id uint, active bool) error {
	result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update user status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// EnsureBootstrapAdmin creates the configured initial administrator once.
// It is a no-op when no bootstrap credentials are configured.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context) error {
	b := s.config.Bootstrap
	if b.AdminUsername == "" || b.AdminPassword == "" {
		return nil
	}

	existing, err := s.FindByUsername(ctx, b.AdminUsername)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	email := b.AdminEmail
	if email == "" {
		email = b.AdminUsername + "@localhost"
	}
	if _, err := s.Create(ctx, CreateUser{
		Username: b.AdminUsername,
		Email:    email,
		Password: b.AdminPassword,
		Role:     RoleSuperAdmin,
	}); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	return nil
}
