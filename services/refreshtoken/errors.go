package refreshtoken

import "errors"

var (
	ErrRefreshTokenInvalid   = errors.New("invalid refresh token")
	ErrTokenGenerationFailed = errors.New("failed to generate secure token")
)

type InactiveReason string

const (
	ReasonNotFound InactiveReason = "not_found"
	ReasonRevoked  InactiveReason = "revoked"
	ReasonReplayed InactiveReason = "replayed"
	ReasonExpired  InactiveReason = "expired"
)

// InactiveTokenError is returned when a presented token cannot be used.
// UserID is set whenever the record exists, so callers can attribute replays.
type InactiveTokenError struct {
	Reason    InactiveReason
	UserID    uint
	SessionID uint
}

func (e *InactiveTokenError) Error() string {
	return "refresh token " + string(e.Reason)
}

func (e *InactiveTokenError) Is(target error) bool {
	return target == ErrRefreshTokenInvalid
}
