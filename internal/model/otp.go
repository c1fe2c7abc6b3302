package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OTPRecord is a pending recovery code. Only the sha256 hash of the code
// is stored; the cleartext exists solely in the outbound mail. At most
// one live record per owner: issuing a new code replaces the old row.
type OTPRecord struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Recipient string
	CodeHash  []byte
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Live reports whether the record can still be consumed at now.
func (r OTPRecord) Live(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// OTPStore defines persistence operations for recovery codes.
type OTPStore interface {
	// Replace deletes any prior record for record.UserID and inserts the
	// new one in a single transaction.
	Replace(ctx context.Context, record OTPRecord) error
	GetByUser(ctx context.Context, userID uuid.UUID) (OTPRecord, error)
	// Delete removes a consumed record; consumption is enforced by
	// deletion, not by a used flag.
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, olderThan time.Time) error
}
