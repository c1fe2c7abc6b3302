package model

import (
	"context"
	"time"
)

// RateVerdict is the outcome of a single limiter consultation.
type RateVerdict struct {
	Allowed bool
	ResetAt time.Time
}

// RateLimiter enforces fixed-window counters keyed by an arbitrary
// identifier (IP, account, or a composite). Windows are aligned to
// n*window boundaries; a key's count resets exactly when the clock
// crosses into a new window. Implementations must never admit more than
// limit calls per window for a key, even under concurrent callers.
type RateLimiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (RateVerdict, error)
}

// Mailer dispatches a message out-of-band. Delivery confirmation is not
// part of the contract; callers treat send errors as best-effort.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// BotVerifier exchanges a client-supplied token for a verdict from the
// external verification service. A network failure is a failed verdict,
// never a pass.
type BotVerifier interface {
	Verify(ctx context.Context, token, clientOrigin string) (bool, error)
}
