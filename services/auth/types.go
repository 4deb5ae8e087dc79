package auth

import (
	"time"

	"github.com/Zaramlt59/TMS-sub001/services/users"
)

type LoginRequest struct {
	Username  string
	Password  string
	DeviceID  string
	IPAddress string
	UserAgent string
}

type RefreshRequest struct {
	RefreshToken string
	CSRFCookie   string
	CSRFHeader   string
	DeviceID     string
	IPAddress    string
	UserAgent    string
}

type LogoutRequest struct {
	RefreshToken string
	ActorID      uint
	IPAddress    string
	UserAgent    string
}

type ChangePasswordRequest struct {
	UserID              uint
	CurrentPassword     string
	NewPassword         string
	CurrentRefreshToken string
	IPAddress           string
	UserAgent           string
}

// TokenResult is what a successful login or refresh hands back to transport.
type TokenResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	CSRFToken        string
	SessionID        uint
	User             *users.User
}
