package refreshtoken

import (
	"time"
)

// RefreshToken is one issued refresh credential. Only the sha256 of the opaque
// value is stored; ReplacedBy holds the successor's hash once rotated.
type RefreshToken struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	UserID     uint       `json:"user_id" gorm:"not null;index"`
	TokenHash  string     `json:"-" gorm:"uniqueIndex;size:64;not null"`
	DeviceID   string     `json:"device_id,omitempty" gorm:"size:255"`
	IPAddress  string     `json:"ip_address,omitempty" gorm:"size:64"`
	UserAgent  string     `json:"user_agent,omitempty" gorm:"size:512"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at" gorm:"not null;index"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" gorm:"index"`
	ReplacedBy *string    `json:"-" gorm:"size:64"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

type IssueOptions struct {
	DeviceID  string
	IPAddress string
	UserAgent string
}

type IssuedToken struct {
	Token     string
	SessionID uint
	UserID    uint
	ExpiresAt time.Time
}

type RotationResult struct {
	IssuedToken
	PreviousSessionID uint
}

// SessionView is the client-safe projection of a refresh token record.
type SessionView struct {
	ID         uint       `json:"id"`
	DeviceID   string     `json:"device_id,omitempty"`
	IPAddress  string     `json:"ip_address,omitempty"`
	UserAgent  string     `json:"user_agent,omitempty"`
	Browser    string     `json:"browser,omitempty"`
	OS         string     `json:"os,omitempty"`
	Device     string     `json:"device,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	Active     bool       `json:"active"`
	Current    bool       `json:"current"`
}
