package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

const userColumns = `id, handle, email, password_hash, role, unit, confirmed, contact_email, created_at, updated_at, deactivated_at`

// UserRepository reads identity records through the ordinary pool and
// performs administrative writes through the privileged one.
type UserRepository struct {
	db    *Connection
	admin *Connection
}

func NewUserRepository(db, admin *Connection) *UserRepository {
	return &UserRepository{db: db, admin: admin}
}

func (r *UserRepository) GetByHandle(ctx context.Context, handle string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(handle) = $1`
	return r.getOne(ctx, query, strings.ToLower(handle))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1`
	return r.getOne(ctx, query, strings.ToLower(email))
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (model.User, error) {
	var user model.User
	var role string

	err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Handle, &user.Email, &user.PasswordHash, &role, &user.Unit,
		&user.Confirmed, &user.ContactEmail, &user.CreatedAt, &user.UpdatedAt, &user.DeactivatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	parsed, err := model.ParseRole(role)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to parse stored role: %w", err)
	}
	user.Role = parsed

	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	query := `INSERT INTO users (id, handle, email, password_hash, role, unit, confirmed, contact_email, created_at, updated_at)
			  VALUES ($1, lower($2), lower($3), $4, $5, $6, $7, $8, now(), now())
			  RETURNING ` + userColumns

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	var saved model.User
	var role string
	err := r.admin.QueryRow(ctx, query,
		user.ID, user.Handle, user.Email, user.PasswordHash, string(user.Role),
		user.Unit, user.Confirmed, user.ContactEmail,
	).Scan(
		&saved.ID, &saved.Handle, &saved.Email, &saved.PasswordHash, &role, &saved.Unit,
		&saved.Confirmed, &saved.ContactEmail, &saved.CreatedAt, &saved.UpdatedAt, &saved.DeactivatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.User{}, model.ErrAlreadyExists
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	saved.Role = model.Role(role)

	return saved, nil
}

func (r *UserRepository) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	const query = `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`

	tag, err := r.admin.Exec(ctx, query, hash, id)
	if err != nil {
		return fmt.Errorf("failed to set password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *UserRepository) MarkConfirmed(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE users SET confirmed = true, updated_at = now() WHERE id = $1 AND NOT confirmed`

	// Zero rows affected means the account was already confirmed; that
	// is a no-op, not an error.
	if _, err := r.admin.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark user confirmed: %w", err)
	}
	return nil
}

func (r *UserRepository) MigrateEmail(ctx context.Context, id uuid.UUID, fromPlaceholder, toEmail string) error {
	// The WHERE guard on the current value makes concurrent migrations
	// of the same record collapse into one write; losers affect zero
	// rows and report success.
	const query = `UPDATE users SET email = lower($1), updated_at = now()
				   WHERE id = $2 AND lower(email) = lower($3)`

	if _, err := r.admin.Exec(ctx, query, toEmail, id, fromPlaceholder); err != nil {
		return fmt.Errorf("failed to migrate user email: %w", err)
	}
	return nil
}

func (r *UserRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE users SET deactivated_at = now(), updated_at = now()
				   WHERE id = $1 AND deactivated_at IS NULL`

	if _, err := r.admin.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	return nil
}
