package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/logger"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
)

// TokenPair is one issued session: a short-lived access token presented
// on every request and a long-lived refresh token that rotates on use.
type TokenPair struct {
	Access  string
	Refresh string
}

// Session issues, refreshes, and revokes sessions. It composes the
// TokenManager with the server-side session store so that a refresh
// token is only honored while its hashed record is live.
type Session struct {
	manager model.TokenManager
	store   model.SessionStore
	users   model.UserStore
	logger  *logger.Logger
	now     func() time.Time
}

func NewSession(manager model.TokenManager, store model.SessionStore, users model.UserStore, logger *logger.Logger) *Session {
	return &Session{
		manager: manager,
		store:   store,
		users:   users,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Session) Issue(ctx context.Context, user model.User) (TokenPair, error) {
	access, err := s.manager.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access: %w", err)
	}

	refresh, jti, err := s.manager.GenerateRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh: %w", err)
	}

	now := s.now()
	record := model.Session{
		ID:        uuid.New(),
		JTI:       jti,
		UserID:    user.ID,
		TokenHash: hashRefresh(refresh),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.manager.RefreshTTL()),
	}

	if err := s.store.Create(ctx, record); err != nil {
		return TokenPair{}, fmt.Errorf("persist session: %w", err)
	}

	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh rotates the presented refresh token into a fresh pair. The old
// record is revoked first so a replayed token can never yield a second
// pair. If the owning identity no longer exists or was deactivated,
// every session of that owner is revoked and the refresh is rejected.
func (s *Session) Refresh(ctx context.Context, presentedRefresh string) (model.User, TokenPair, error) {
	userID, jti, err := s.manager.ParseRefreshToken(presentedRefresh)
	if err != nil {
		return model.User{}, TokenPair{}, fmt.Errorf("%w: %w", model.ErrSessionInvalid, err)
	}

	record, err := s.store.GetByJTI(ctx, jti)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, TokenPair{}, model.ErrSessionInvalid
		}
		return model.User{}, TokenPair{}, fmt.Errorf("get session: %w", err)
	}

	if err := validateRecord(record, hashRefresh(presentedRefresh), s.now()); err != nil {
		return model.User{}, TokenPair{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return model.User{}, TokenPair{}, fmt.Errorf("get session owner: %w", err)
	}
	if errors.Is(err, model.ErrNotFound) || !user.Active() {
		s.logger.Info("Session service: orphaned session, revoking all",
			"user_id", userID)
		if err := s.store.RevokeAllByUser(ctx, userID); err != nil {
			s.logger.Error("Session service: failed to revoke orphaned sessions",
				"user_id", userID,
				"error", err.Error())
		}
		return model.User{}, TokenPair{}, model.ErrSessionInvalid
	}

	if err := s.store.RevokeByJTI(ctx, jti); err != nil {
		return model.User{}, TokenPair{}, fmt.Errorf("revoke old session: %w", err)
	}

	access, err := s.manager.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		return model.User{}, TokenPair{}, fmt.Errorf("issue new access: %w", err)
	}

	refresh, newJTI, err := s.manager.GenerateRefreshToken(user.ID)
	if err != nil {
		return model.User{}, TokenPair{}, fmt.Errorf("issue new refresh: %w", err)
	}

	now := s.now()
	rotatedFrom := record.JTI
	rotated := model.Session{
		ID:             uuid.New(),
		JTI:            newJTI,
		UserID:         user.ID,
		TokenHash:      hashRefresh(refresh),
		IssuedAt:       now,
		ExpiresAt:      now.Add(s.manager.RefreshTTL()),
		RotatedFromJTI: &rotatedFrom,
	}
	if err := s.store.Create(ctx, rotated); err != nil {
		return model.User{}, TokenPair{}, fmt.Errorf("persist rotated session: %w", err)
	}

	return user, TokenPair{Access: access, Refresh: refresh}, nil
}

// ParseAccess verifies an access token and returns its claims.
func (s *Session) ParseAccess(token string) (model.AccessClaims, error) {
	return s.manager.ParseAccessToken(token)
}

// AccessTTL reports the configured access-token lifetime.
func (s *Session) AccessTTL() time.Duration {
	return s.manager.AccessTTL()
}

// RefreshTTL reports the configured refresh-token lifetime.
func (s *Session) RefreshTTL() time.Duration {
	return s.manager.RefreshTTL()
}

func (s *Session) RevokeByToken(ctx context.Context, presentedRefresh string) error {
	_, jti, err := s.manager.ParseRefreshToken(presentedRefresh)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrSessionInvalid, err)
	}
	if err := s.store.RevokeByJTI(ctx, jti); err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *Session) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return s.store.RevokeAllByUser(ctx, userID)
}

func hashRefresh(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

func validateRecord(record model.Session, presentedHash []byte, now time.Time) error {
	if record.RevokedAt != nil {
		return model.ErrSessionRevoked
	}
	if now.After(record.ExpiresAt) {
		return model.ErrSessionExpired
	}
	if subtle.ConstantTimeCompare(record.TokenHash, presentedHash) != 1 {
		return model.ErrSessionInvalid
	}
	return nil
}
