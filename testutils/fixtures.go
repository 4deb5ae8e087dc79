package testutils

import (
	"time"

	"github.com/Zaramlt59/TMS-sub001/config"
	"golang.org/x/crypto/bcrypt"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "TMS",
			URL:  "http://localhost:8080",
		},
		Server: config.ServerConfig{
			Host: "localhost",
			Port: "8080",
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "json",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		Auth: config.AuthConfig{
			MinLength:           8,
			RequireUpper:        true,
			RequireLower:        true,
			RequireNumber:       true,
			BcryptCost:          bcrypt.MinCost,
			PasswordResetExpiry: 15 * time.Minute,
			PasswordResetPath:   "/reset-password",
		},
		JWT: config.JWTConfig{
			SecretKey:    "tms-unit-suite-signing-key-0123456789abcdef",
			Algorithm:    "HS256",
			AccessExpiry: 15 * time.Minute,
			Issuer:       "tms",
		},
		RefreshToken: config.RefreshTokenConfig{
			TokenLength: 32,
			Expiry:      7 * 24 * time.Hour,
		},
		Lockout: config.LockoutConfig{
			MaxAttempts:     5,
			Window:          15 * time.Minute,
			Duration:        15 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Audit: config.AuditConfig{
			MaxQueueSize:      1000,
			BatchSize:         10,
			MaxRetries:        3,
			BatchPause:        time.Millisecond,
			PersistTimeout:    time.Second,
			FlushTimeout:      5 * time.Second,
			HighLoadThreshold: 500,
			MaxDetailsBytes:   10000,
			PreviewBytes:      500,
		},
		Cookie: config.CookieConfig{
			RefreshName: "refresh_token",
			CSRFName:    "csrf_token",
			CSRFHeader:  "X-CSRF-Token",
			Path:        "/",
			Secure:      true,
			SameSite:    "strict",
		},
		RateLimit: config.RateLimitConfig{
			Enabled: true,
			Rate:    5,
			Period:  time.Minute,
		},
		Mail: config.MailConfig{
			Host:        "localhost",
			Port:        587,
			Encryption:  "none",
			FromAddress: "noreply@tms.local",
			FromName:    "TMS",
		},
	}
}

var TestPasswords = struct {
	Valid       string
	Other       string
	TooShort    string
	NoUpper     string
	NoLower     string
	NoNumber    string
	WithSpecial string
}{
	Valid:       "Password123",
	Other:       "Different456",
	TooShort:    "Pass1",
	NoUpper:     "password123",
	NoLower:     "PASSWORD123",
	NoNumber:    "Password",
	WithSpecial: "Password123!",
}

type TestUser struct {
	Username string
	Email    string
	Password string
	Role     string
}

var TestUsers = struct {
	Alice TestUser
	Bob   TestUser
	Admin TestUser
}{
	Alice: TestUser{Username: "alice", Email: "alice@school.example", Password: "Password123", Role: "teacher"},
	Bob:   TestUser{Username: "bob", Email: "bob@school.example", Password: "Password123", Role: "teacher"},
	Admin: TestUser{Username: "admin", Email: "admin@tms.example", Password: "Password123", Role: "super_admin"},
}
