package auth

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountLocked       = errors.New("too many failed login attempts")
	ErrCSRFMismatch        = errors.New("csrf token mismatch")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrResetTokenInvalid   = errors.New("invalid or expired password reset token")
)

// LockedError reports an active lockout and how long it has left.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s, try again in %d seconds", ErrAccountLocked, e.RetryAfterSeconds())
}

func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// RetryAfterSeconds rounds up so clients never retry early.
func (e *LockedError) RetryAfterSeconds() int {
	seconds := int(math.Ceil(e.Remaining.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
