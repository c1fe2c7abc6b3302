package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is a server-side refresh-token record. The token value itself
// is never stored, only its sha256 hash.
type Session struct {
	ID             uuid.UUID
	JTI            string
	UserID         uuid.UUID
	TokenHash      []byte
	IssuedAt       time.Time
	ExpiresAt      time.Time
	RevokedAt      *time.Time
	RotatedFromJTI *string
}

// SessionStore defines persistence operations for sessions.
type SessionStore interface {
	Create(ctx context.Context, session Session) error
	GetByJTI(ctx context.Context, jti string) (Session, error)
	RevokeByJTI(ctx context.Context, jti string) error
	RevokeAllByUser(ctx context.Context, userID uuid.UUID) error
}

// AccessClaims is the verified content of an access token.
type AccessClaims struct {
	UserID    uuid.UUID
	Role      Role
	ExpiresAt time.Time
}

// TokenManager mints and verifies the two halves of a session token:
// a short-lived signed access token and an opaque refresh token.
type TokenManager interface {
	GenerateAccessToken(userID uuid.UUID, role Role) (string, error)
	GenerateRefreshToken(userID uuid.UUID) (token string, jti string, err error)
	// ParseAccessToken returns the claims of a valid, unexpired access
	// token.
	ParseAccessToken(token string) (AccessClaims, error)
	// ParseRefreshToken returns the subject and JTI. The stored hash
	// still has to be checked against the presented token.
	ParseRefreshToken(token string) (userID uuid.UUID, jti string, err error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}
