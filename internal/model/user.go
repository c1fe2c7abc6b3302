package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of portal roles. Route authorization works off
// this enum; an unparseable role denies instead of defaulting to allow.
type Role string

const (
	RoleStudent    Role = "student"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole maps a stored role string onto the enum.
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(s)) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleSuperAdmin:
		return RoleSuperAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// User is an identity record. ID is immutable once created. Email starts
// out as either a real address or the synthetic legacy placeholder and
// may be rewritten exactly once, placeholder → real, never the reverse.
type User struct {
	ID           uuid.UUID
	Handle       string // stored lower-case, unique
	Email        string // authentication email, possibly synthetic
	PasswordHash string
	Role         Role
	Unit         string // assigned hostel block
	Confirmed    bool
	ContactEmail *string // real deliverable address on file, if any
	CreatedAt    time.Time
	UpdatedAt    time.Time
	// DeactivatedAt soft-invalidates the record; rows are never required
	// to be physically deleted.
	DeactivatedAt *time.Time
}

// Active reports whether the record is usable for authentication.
func (u User) Active() bool {
	return u.DeactivatedAt == nil
}

// UserStore defines persistence operations for identity records.
// Handle lookups are case-insensitive. The mutating administrative
// operations (SetPasswordHash, MarkConfirmed, MigrateEmail, Create)
// run on the privileged connection.
type UserStore interface {
	GetByHandle(ctx context.Context, handle string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	Create(ctx context.Context, user User) (User, error)
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	MarkConfirmed(ctx context.Context, id uuid.UUID) error
	// MigrateEmail rewrites the authentication email from the expected
	// placeholder to the given real address. The update is conditional
	// on the stored value still being the placeholder, so re-running it
	// after a concurrent login already migrated the row is a no-op.
	MigrateEmail(ctx context.Context, id uuid.UUID, fromPlaceholder, toEmail string) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}
