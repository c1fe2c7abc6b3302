package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
)

var _ model.OTPStore = (*OTPRepository)(nil)

// OTPRepository persists recovery codes through the privileged pool:
// issuing and consuming codes are administrative operations.
type OTPRepository struct {
	admin *Connection
}

func NewOTPRepository(admin *Connection) *OTPRepository {
	return &OTPRepository{admin: admin}
}

func (r *OTPRepository) Replace(ctx context.Context, record model.OTPRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	tx, err := r.admin.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin otp transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// A new issuance invalidates any prior live code for the owner.
	if _, err := tx.Exec(ctx, `DELETE FROM otp_codes WHERE user_id = $1`, record.UserID); err != nil {
		return fmt.Errorf("failed to delete prior otp record: %w", err)
	}

	const insert = `
        INSERT INTO otp_codes (id, user_id, recipient, code_hash, expires_at, created_at)
        VALUES ($1,$2,$3,$4,$5,now())
    `
	if _, err := tx.Exec(ctx, insert,
		record.ID, record.UserID, record.Recipient, record.CodeHash, record.ExpiresAt,
	); err != nil {
		return fmt.Errorf("failed to insert otp record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit otp transaction: %w", err)
	}
	return nil
}

func (r *OTPRepository) GetByUser(ctx context.Context, userID uuid.UUID) (model.OTPRecord, error) {
	const query = `
        SELECT id, user_id, recipient, code_hash, expires_at, created_at
        FROM otp_codes WHERE user_id = $1
    `
	var rec model.OTPRecord
	err := r.admin.QueryRow(ctx, query, userID).Scan(
		&rec.ID, &rec.UserID, &rec.Recipient, &rec.CodeHash, &rec.ExpiresAt, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.OTPRecord{}, model.ErrNotFound
		}
		return model.OTPRecord{}, fmt.Errorf("failed to get otp record: %w", err)
	}
	return rec, nil
}

func (r *OTPRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.admin.Exec(ctx, `DELETE FROM otp_codes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete otp record: %w", err)
	}
	return nil
}

func (r *OTPRepository) DeleteExpired(ctx context.Context, olderThan time.Time) error {
	if _, err := r.admin.Exec(ctx, `DELETE FROM otp_codes WHERE expires_at < $1`, olderThan); err != nil {
		return fmt.Errorf("failed to purge expired otp records: %w", err)
	}
	return nil
}
