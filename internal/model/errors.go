package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by stores when no row matches the query.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned on a uniqueness conflict, e.g. a
	// taken handle at registration.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput marks malformed input that is safe to describe in
	// the response.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCredentials covers both an unknown handle and a wrong
	// password. Callers must not distinguish the two cases in responses.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrSessionInvalid = errors.New("session invalid")
	ErrSessionExpired = errors.New("session expired")
	ErrSessionRevoked = errors.New("session revoked")

	// ErrForbidden is a role/scope denial. Authorization is fail-closed:
	// an unrecognized role maps here, never to an allow.
	ErrForbidden = errors.New("forbidden")

	ErrOTPInvalid = errors.New("invalid recovery code")
	ErrOTPExpired = errors.New("recovery code has expired")

	// ErrConfiguration marks a missing or unusable required setting.
	// It is fatal at startup and short-circuits requests if it ever
	// surfaces later.
	ErrConfiguration = errors.New("configuration error")

	// ErrExternalService marks an unreachable or failing collaborator
	// (bot verification, mail relay, rate-limit store).
	ErrExternalService = errors.New("external service unavailable")
)

// RateLimitError reports an exhausted rate-limit window. Responses built
// from it disclose only the retry time, never counts or limits.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.ResetAt.UTC().Format(time.RFC3339))
}

// RetryAfter returns the non-negative duration until the window resets.
func (e *RateLimitError) RetryAfter(now time.Time) time.Duration {
	d := e.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// IsRateLimited reports whether err wraps a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
