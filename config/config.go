package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig          `envPrefix:"APP_"`
	Server       ServerConfig       `envPrefix:"SERVER_"`
	Log          LogConfig          `envPrefix:"LOG_"`
	Database     DatabaseConfig     `envPrefix:"DATABASE_"`
	Auth         AuthConfig         `envPrefix:"AUTH_"`
	JWT          JWTConfig          `envPrefix:"JWT_"`
	RefreshToken RefreshTokenConfig `envPrefix:"REFRESH_TOKEN_"`
	Lockout      LockoutConfig      `envPrefix:"LOCKOUT_"`
	Audit        AuditConfig        `envPrefix:"AUDIT_"`
	Cookie       CookieConfig       `envPrefix:"COOKIE_"`
	RateLimit    RateLimitConfig    `envPrefix:"RATE_LIMIT_"`
	Mail         MailConfig         `envPrefix:"MAIL_"`
	Bootstrap    BootstrapConfig    `envPrefix:"BOOTSTRAP_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"Teacher Management System"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	Host           string   `env:"HOST" envDefault:"localhost"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"tms.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type AuthConfig struct {
	MinLength           int           `env:"MIN_LENGTH" envDefault:"8"`
	RequireUpper        bool          `env:"REQUIRE_UPPER" envDefault:"true"`
	RequireLower        bool          `env:"REQUIRE_LOWER" envDefault:"true"`
	RequireNumber       bool          `env:"REQUIRE_NUMBER" envDefault:"true"`
	RequireSpecial      bool          `env:"REQUIRE_SPECIAL" envDefault:"false"`
	BcryptCost          int           `env:"BCRYPT_COST" envDefault:"10"`
	PasswordResetExpiry time.Duration `env:"PASSWORD_RESET_EXPIRY" envDefault:"15m"`
	PasswordResetPath   string        `env:"PASSWORD_RESET_PATH" envDefault:"/reset-password"`
}

type JWTConfig struct {
	SecretKey    string        `env:"SECRET_KEY"`
	Algorithm    string        `env:"ALGORITHM" envDefault:"HS256"`
	AccessExpiry time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
	Issuer       string        `env:"ISSUER" envDefault:"tms"`
}

type RefreshTokenConfig struct {
	TokenLength     int           `env:"TOKEN_LENGTH" envDefault:"32"`
	Expiry          time.Duration `env:"EXPIRY" envDefault:"168h"`
	Retention       time.Duration `env:"RETENTION" envDefault:"0"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
}

// LockoutConfig bounds failed logins per (username, ip).
type LockoutConfig struct {
	MaxAttempts     int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	Window          time.Duration `env:"WINDOW" envDefault:"15m"`
	Duration        time.Duration `env:"DURATION" envDefault:"15m"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1m"`
}

type AuditConfig struct {
	MaxQueueSize      int           `env:"MAX_QUEUE_SIZE" envDefault:"1000"`
	BatchSize         int           `env:"BATCH_SIZE" envDefault:"10"`
	MaxRetries        int           `env:"MAX_RETRIES" envDefault:"3"`
	BatchPause        time.Duration `env:"BATCH_PAUSE" envDefault:"10ms"`
	PersistTimeout    time.Duration `env:"PERSIST_TIMEOUT" envDefault:"5s"`
	FlushTimeout      time.Duration `env:"FLUSH_TIMEOUT" envDefault:"10s"`
	HighLoadThreshold int           `env:"HIGH_LOAD_THRESHOLD" envDefault:"500"`
	MaxDetailsBytes   int           `env:"MAX_DETAILS_BYTES" envDefault:"10000"`
	PreviewBytes      int           `env:"PREVIEW_BYTES" envDefault:"500"`
	MaintenanceMode   bool          `env:"MAINTENANCE_MODE" envDefault:"false"`
}

type CookieConfig struct {
	RefreshName string `env:"REFRESH_NAME" envDefault:"refresh_token"`
	CSRFName    string `env:"CSRF_NAME" envDefault:"csrf_token"`
	CSRFHeader  string `env:"CSRF_HEADER" envDefault:"X-CSRF-Token"`
	Path        string `env:"PATH" envDefault:"/"`
	Domain      string `env:"DOMAIN"`
	Secure      bool   `env:"SECURE" envDefault:"true"`
	SameSite    string `env:"SAME_SITE" envDefault:"strict"`
}

type RateLimitConfig struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	Rate    int           `env:"RATE" envDefault:"5"`
	Period  time.Duration `env:"PERIOD" envDefault:"1m"`
}

type MailConfig struct {
	Enabled     bool   `env:"ENABLED" envDefault:"false"`
	Host        string `env:"HOST" envDefault:"localhost"`
	Port        int    `env:"PORT" envDefault:"587"`
	Username    string `env:"USERNAME"`
	Password    string `env:"PASSWORD"`
	Encryption  string `env:"ENCRYPTION" envDefault:"starttls"`
	FromAddress string `env:"FROM_ADDRESS"`
	FromName    string `env:"FROM_NAME" envDefault:"TMS"`
}

type BootstrapConfig struct {
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		return c.Validate()
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validateJWTConfig(&c.JWT); err != nil {
		return err
	}
	if err := validateRefreshTokenConfig(&c.RefreshToken); err != nil {
		return err
	}
	if err := validateLockoutConfig(&c.Lockout); err != nil {
		return err
	}
	return validateAuditConfig(&c.Audit)
}

var weakSecretPatterns = []string{"password", "secret", "test", "example", "default", "change"}

func validateJWTConfig(cfg *JWTConfig) error {
	if len(cfg.SecretKey) < 32 {
		return errors.New("JWT secret key must be at least 32 characters long")
	}

	lower := strings.ToLower(cfg.SecretKey)
	for _, pattern := range weakSecretPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("JWT secret key contains weak patterns (%q)", pattern)
		}
	}

	if cfg.Algorithm != "" && cfg.Algorithm != "HS256" {
		return fmt.Errorf("unsupported JWT algorithm: %s (supported: HS256)", cfg.Algorithm)
	}
	return nil
}

func validateRefreshTokenConfig(cfg *RefreshTokenConfig) error {
	if cfg.TokenLength < 16 {
		return errors.New("refresh token length must be at least 16 bytes")
	}
	if cfg.TokenLength > 128 {
		return errors.New("refresh token length cannot exceed 128 bytes")
	}
	if cfg.Expiry <= 0 {
		return errors.New("refresh token expiry must be positive")
	}
	return nil
}

func validateLockoutConfig(cfg *LockoutConfig) error {
	if cfg.MaxAttempts <= 0 {
		return errors.New("lockout max attempts must be positive")
	}
	if cfg.Window <= 0 || cfg.Duration <= 0 {
		return errors.New("lockout window and duration must be positive")
	}
	return nil
}

func validateAuditConfig(cfg *AuditConfig) error {
	if cfg.MaxQueueSize <= 0 || cfg.BatchSize <= 0 {
		return errors.New("audit queue size and batch size must be positive")
	}
	if cfg.BatchSize > cfg.MaxQueueSize {
		return errors.New("audit batch size cannot exceed queue size")
	}
	if cfg.HighLoadThreshold > cfg.MaxQueueSize {
		return errors.New("audit high load threshold cannot exceed queue size")
	}
	if cfg.MaxRetries < 0 {
		return errors.New("audit max retries cannot be negative")
	}
	return nil
}
