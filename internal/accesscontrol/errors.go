package accesscontrol

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by the core. The HTTP layer maps them onto
// response codes; internally callers branch with errors.Is/errors.As.
var (
	// ErrUnauthenticated is the single externally visible authentication
	// failure. Malformed signatures, expired tokens and revoked tokens all
	// collapse into it so responses never reveal why a token was rejected.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidToken reports a malformed or tampered token. Internal only;
	// TokenService wraps it into ErrUnauthenticated before returning.
	ErrInvalidToken = errors.New("invalid token")

	// ErrRefreshReuse signals that a refresh token was presented after it
	// had already been rotated or revoked. Detection triggers revocation of
	// the whole session family for the owning user.
	ErrRefreshReuse = errors.New("refresh token reuse detected")

	// ErrRateLimited is the base error for rate-limit denials.
	ErrRateLimited = errors.New("rate limited")

	// ErrInsufficientPermissions is the base error for authorization denials.
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)

// RateLimitError carries the retry metadata of the tier that denied the
// request, for Retry-After and X-RateLimit-* headers.
type RateLimitError struct {
	Status RateStatus
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited on tier %s, retry after %s",
		e.Status.Tier, time.Until(e.Status.ResetAt).Round(time.Second))
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// RefreshReuseError identifies the user whose session family was revoked
// after a replayed refresh token. Callers record the user; the HTTP layer
// still renders it as a plain authentication failure.
type RefreshReuseError struct {
	UserID int64
}

func (e *RefreshReuseError) Error() string {
	return fmt.Sprintf("refresh token reuse detected for user %d", e.UserID)
}

// Is makes errors.Is(err, ErrRefreshReuse) match.
func (e *RefreshReuseError) Is(target error) bool {
	return target == ErrRefreshReuse
}

// PermissionError carries the attempted operation and denial reason so the
// caller can log the decision.
type PermissionError struct {
	Operation string
	Reason    string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s denied: %s", e.Operation, e.Reason)
}

// Is makes errors.Is(err, ErrInsufficientPermissions) match.
func (e *PermissionError) Is(target error) bool {
	return target == ErrInsufficientPermissions
}
