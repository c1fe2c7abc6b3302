package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/logger"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/password"
)

// RecoveryConfig carries the one-time-code parameters and the
// recovery-path limits.
type RecoveryConfig struct {
	OTPDigits         int
	OTPTTL            time.Duration
	MailEnabled       bool
	MailSubject       string
	IPLimit           int
	OwnerLimit        int
	Window            time.Duration
	LegacyEmailDomain string
}

// Recovery runs the two-phase credential recovery flow: code issuance
// and confirmation with a forced password update.
type Recovery struct {
	users    model.UserStore
	otps     model.OTPStore
	sessions *Session
	hasher   *password.Hasher
	mailer   model.Mailer
	limiter  model.RateLimiter
	logger   *logger.Logger
	config   RecoveryConfig
	now      func() time.Time
}

func NewRecovery(
	users model.UserStore,
	otps model.OTPStore,
	sessions *Session,
	hasher *password.Hasher,
	mailer model.Mailer,
	limiter model.RateLimiter,
	logger *logger.Logger,
	config RecoveryConfig,
) *Recovery {
	return &Recovery{
		users:    users,
		otps:     otps,
		sessions: sessions,
		hasher:   hasher,
		mailer:   mailer,
		limiter:  limiter,
		logger:   logger,
		config:   config,
		now:      time.Now,
	}
}

// Request issues a recovery code for the account matching identifier, an
// email or a legacy handle. It returns nil whether or not an account
// exists; the caller's response must be identical in both cases. A new
// code always supersedes any prior live one for the same owner.
func (r *Recovery) Request(ctx context.Context, identifier, clientIP string) error {
	if err := r.checkLimit(ctx, "recovery:ip:"+clientIP, r.config.IPLimit); err != nil {
		return err
	}

	user, err := r.lookupOwner(ctx, identifier)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return err
	}

	recipient, ok := r.deliverableAddress(user)
	if !ok {
		r.logger.Info("Recovery service: no deliverable address",
			"user_id", user.ID)
		return nil
	}

	code, err := generateCode(r.config.OTPDigits)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	now := r.now()
	record := model.OTPRecord{
		ID:        uuid.New(),
		UserID:    user.ID,
		Recipient: recipient,
		CodeHash:  hashCode(code),
		ExpiresAt: now.Add(r.config.OTPTTL),
		CreatedAt: now,
	}
	if err := r.otps.Replace(ctx, record); err != nil {
		return fmt.Errorf("store recovery code: %w", err)
	}

	if !r.config.MailEnabled {
		r.logger.Warn("Recovery service: mail disabled, code not dispatched",
			"user_id", user.ID)
		return nil
	}

	// Awaited within this invocation, but a dispatch failure must not
	// turn into an account-existence oracle.
	body := fmt.Sprintf(
		"<p>Your recovery code is <strong>%s</strong>.</p><p>It expires in %d minutes. If you did not request it, ignore this message.</p>",
		code, int(r.config.OTPTTL.Minutes()),
	)
	if err := r.mailer.Send(ctx, recipient, r.config.MailSubject, body); err != nil {
		r.logger.Error("Recovery service: code dispatch failed",
			"user_id", user.ID,
			"error", err.Error())
	}

	return nil
}

// Confirm consumes a live code and force-sets the new password. The code
// itself is the proof of control, so no re-authentication happens here.
// Both limiter calls run before any code lookup.
func (r *Recovery) Confirm(ctx context.Context, identifier, code, newPassword, clientIP string) error {
	if err := r.checkLimit(ctx, "recovery:confirm:ip:"+clientIP, r.config.IPLimit); err != nil {
		return err
	}
	ownerKey := strings.ToLower(strings.TrimSpace(identifier))
	if err := r.checkLimit(ctx, "recovery:confirm:owner:"+ownerKey, r.config.OwnerLimit); err != nil {
		return err
	}

	user, err := r.lookupOwner(ctx, identifier)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrOTPInvalid
		}
		return err
	}

	record, err := r.otps.GetByUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrOTPInvalid
		}
		return fmt.Errorf("get recovery code: %w", err)
	}

	if subtle.ConstantTimeCompare(record.CodeHash, hashCode(code)) != 1 {
		return model.ErrOTPInvalid
	}
	// An expired record stays until superseded or purged; matching it is
	// reported distinctly from a wrong code.
	if !record.Live(r.now()) {
		return model.ErrOTPExpired
	}

	hash, err := r.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) {
			return fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
		}
		return fmt.Errorf("hash password: %w", err)
	}

	if err := r.users.SetPasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	if err := r.users.MarkConfirmed(ctx, user.ID); err != nil {
		r.logger.Error("Recovery service: confirmation failed",
			"user_id", user.ID,
			"error", err.Error())
	}

	if err := r.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		r.logger.Error("Recovery service: session revocation failed",
			"user_id", user.ID,
			"error", err.Error())
	}

	if err := r.otps.Delete(ctx, record.ID); err != nil {
		return fmt.Errorf("consume recovery code: %w", err)
	}

	if err := r.otps.DeleteExpired(ctx, r.now()); err != nil {
		r.logger.Error("Recovery service: expired-code purge failed",
			"error", err.Error())
	}

	r.logger.Info("Recovery service: password reset",
		"user_id", user.ID)

	return nil
}

// lookupOwner resolves an email or a handle to its identity record.
// Deactivated accounts are treated as absent.
func (r *Recovery) lookupOwner(ctx context.Context, identifier string) (model.User, error) {
	identifier = strings.TrimSpace(identifier)

	var (
		user model.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = r.users.GetByEmail(ctx, identifier)
	} else {
		user, err = r.users.GetByHandle(ctx, NormalizeHandle(identifier))
	}
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			err = fmt.Errorf("lookup recovery owner: %w", err)
		}
		return model.User{}, err
	}
	if !user.Active() {
		return model.User{}, model.ErrNotFound
	}

	return user, nil
}

// deliverableAddress picks the address a code can actually reach: the
// real contact address if one is on file, otherwise the authentication
// email unless it is still the synthetic legacy placeholder.
func (r *Recovery) deliverableAddress(user model.User) (string, bool) {
	if user.ContactEmail != nil && *user.ContactEmail != "" {
		return *user.ContactEmail, true
	}
	if strings.HasSuffix(strings.ToLower(user.Email), "@"+strings.ToLower(r.config.LegacyEmailDomain)) {
		return "", false
	}
	return user.Email, true
}

func (r *Recovery) checkLimit(ctx context.Context, key string, limit int) error {
	verdict, err := r.limiter.Check(ctx, key, limit, r.config.Window)
	if err != nil {
		return fmt.Errorf("check rate limit: %w", err)
	}
	if !verdict.Allowed {
		return &model.RateLimitError{ResetAt: verdict.ResetAt}
	}
	return nil
}

// generateCode draws a uniform numeric code of the given width. Widths
// below six digits are rejected as too narrow a value space.
func generateCode(digits int) (string, error) {
	if digits < 6 {
		return "", fmt.Errorf("%w: recovery code width %d is too narrow", model.ErrConfiguration, digits)
	}

	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("draw random code: %w", err)
	}

	return fmt.Sprintf("%0*d", digits, n), nil
}

func hashCode(code string) []byte {
	h := sha256.Sum256([]byte(code))
	return h[:]
}
