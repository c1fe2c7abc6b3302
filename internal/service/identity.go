package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/logger"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/password"
)

const handleMaxLength = 64

// IdentityConfig carries the login-path limits and the legacy address
// domain.
type IdentityConfig struct {
	LoginIPLimit       int
	LoginHandleLimit   int
	LoginNoBotLimit    int
	LoginWindow        time.Duration
	RegisterIPLimit    int
	RegisterNoBotLimit int
	RegisterWindow     time.Duration
	LegacyEmailDomain  string
}

// Identity resolves login handles to authentication identities, verifies
// credentials, and runs the post-auth legacy migration.
type Identity struct {
	users    model.UserStore
	sessions *Session
	hasher   *password.Hasher
	bots     model.BotVerifier // nil when verification is disabled
	limiter  model.RateLimiter
	logger   *logger.Logger
	config   IdentityConfig

	// dummyHash absorbs the single password verification for unknown or
	// deactivated accounts so the work done per attempt does not depend
	// on account existence.
	dummyHash string
}

func NewIdentity(
	users model.UserStore,
	sessions *Session,
	hasher *password.Hasher,
	bots model.BotVerifier,
	limiter model.RateLimiter,
	logger *logger.Logger,
	config IdentityConfig,
) (*Identity, error) {
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &Identity{
		users:     users,
		sessions:  sessions,
		hasher:    hasher,
		bots:      bots,
		limiter:   limiter,
		logger:    logger,
		config:    config,
		dummyHash: dummy,
	}, nil
}

// LoginInput is one authentication attempt as received at the boundary.
type LoginInput struct {
	Handle     string
	Password   string
	BotToken   string
	ClientIP   string
	RememberMe bool
}

// LoginResult grants a session. RememberMe is echoed back so the
// transport layer can shape cookie persistence; server-side validity is
// identical either way.
type LoginResult struct {
	User       model.User
	Tokens     TokenPair
	RememberMe bool
}

// Login implements handle resolution with the legacy fallback. The only
// error callers may surface for a failed attempt is
// model.ErrInvalidCredentials, identical for unknown handles and wrong
// passwords.
func (i *Identity) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	handle := NormalizeHandle(input.Handle)
	if handle == "" || input.Password == "" {
		return LoginResult{}, model.ErrInvalidCredentials
	}

	ipLimit, passed := i.botGate(ctx, input.BotToken, input.ClientIP, i.config.LoginIPLimit, i.config.LoginNoBotLimit)
	if !passed {
		return LoginResult{}, model.ErrInvalidCredentials
	}

	if err := i.checkLimit(ctx, "login:ip:"+input.ClientIP, ipLimit, i.config.LoginWindow); err != nil {
		return LoginResult{}, err
	}
	if err := i.checkLimit(ctx, "login:handle:"+handle, i.config.LoginHandleLimit, i.config.LoginWindow); err != nil {
		return LoginResult{}, err
	}

	email, err := i.resolveEmail(ctx, handle)
	if err != nil {
		return LoginResult{}, err
	}

	user, err := i.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			i.hasher.Verify(input.Password, i.dummyHash)
			return LoginResult{}, model.ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("get user by email: %w", err)
	}
	if !user.Active() {
		i.hasher.Verify(input.Password, i.dummyHash)
		return LoginResult{}, model.ErrInvalidCredentials
	}

	ok, err := i.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return LoginResult{}, model.ErrInvalidCredentials
	}

	user = i.housekeep(ctx, user)

	tokens, err := i.sessions.Issue(ctx, user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue session: %w", err)
	}

	i.logger.Info("Identity service: login succeeded",
		"user_id", user.ID,
		"role", string(user.Role))

	return LoginResult{User: user, Tokens: tokens, RememberMe: input.RememberMe}, nil
}

// resolveEmail maps a handle onto the address to authenticate against.
// Unknown handles fall back to the synthetic legacy address so
// pre-migration accounts stay reachable without a dedicated migration
// pass.
func (i *Identity) resolveEmail(ctx context.Context, handle string) (string, error) {
	user, err := i.users.GetByHandle(ctx, handle)
	if err == nil {
		return user.Email, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return "", fmt.Errorf("get user by handle: %w", err)
	}

	i.logger.Warn("Identity service: handle not found, trying legacy address",
		"handle", handle)

	return i.LegacyAddress(handle), nil
}

// LegacyAddress returns the deterministic synthetic address for a
// handle.
func (i *Identity) LegacyAddress(handle string) string {
	return NormalizeHandle(handle) + "@" + i.config.LegacyEmailDomain
}

// housekeep runs the post-verification fixups: migrate a still-synthetic
// authentication email to the real address on file and confirm the
// account. The caller has just proven the password, so neither step can
// leak account existence. Failures are logged and swallowed.
func (i *Identity) housekeep(ctx context.Context, user model.User) model.User {
	placeholder := i.LegacyAddress(user.Handle)

	if strings.EqualFold(user.Email, placeholder) && user.ContactEmail != nil && *user.ContactEmail != "" {
		err := i.users.MigrateEmail(ctx, user.ID, placeholder, *user.ContactEmail)
		if err != nil {
			i.logger.Error("Identity service: email migration failed",
				"user_id", user.ID,
				"error", err.Error())
		} else {
			user.Email = strings.ToLower(*user.ContactEmail)
		}
	}

	if !user.Confirmed {
		if err := i.users.MarkConfirmed(ctx, user.ID); err != nil {
			i.logger.Error("Identity service: confirmation failed",
				"user_id", user.ID,
				"error", err.Error())
		} else {
			user.Confirmed = true
		}
	}

	return user
}

// botGate applies the verification verdict to a per-IP budget. A
// missing token or an unreachable verifier degrades to the tighter
// limit instead of blocking; an explicit failed verdict reports
// passed=false and the caller rejects.
func (i *Identity) botGate(ctx context.Context, botToken, clientIP string, fullLimit, degradedLimit int) (int, bool) {
	if i.bots == nil {
		return fullLimit, true
	}
	if botToken == "" {
		return degradedLimit, true
	}

	ok, err := i.bots.Verify(ctx, botToken, clientIP)
	if err != nil {
		i.logger.Error("Identity service: bot verification unavailable",
			"error", err.Error())
		return degradedLimit, true
	}
	if !ok {
		return 0, false
	}
	return fullLimit, true
}

// RegisterInput is a student self-registration request.
type RegisterInput struct {
	Handle   string
	Email    string
	Password string
	Unit     string
	BotToken string
	ClientIP string
}

// Register creates a student identity record. Admin roles are only
// assigned out-of-band, never through this path.
func (i *Identity) Register(ctx context.Context, input RegisterInput) (model.User, error) {
	handle := NormalizeHandle(input.Handle)
	if handle == "" {
		return model.User{}, fmt.Errorf("%w: handle is required", model.ErrInvalidInput)
	}

	ipLimit, passed := i.botGate(ctx, input.BotToken, input.ClientIP, i.config.RegisterIPLimit, i.config.RegisterNoBotLimit)
	if !passed {
		return model.User{}, fmt.Errorf("%w: verification challenge failed", model.ErrInvalidInput)
	}

	if err := i.checkLimit(ctx, "register:ip:"+input.ClientIP, ipLimit, i.config.RegisterWindow); err != nil {
		return model.User{}, err
	}

	hash, err := i.hasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) {
			return model.User{}, fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
		}
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	email := strings.TrimSpace(strings.ToLower(input.Email))
	var contact *string
	if email == "" {
		email = i.LegacyAddress(handle)
	} else {
		contact = &email
	}

	user, err := i.users.Create(ctx, model.User{
		Handle:       handle,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleStudent,
		Unit:         strings.TrimSpace(input.Unit),
		ContactEmail: contact,
	})
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	i.logger.Info("Identity service: user registered",
		"user_id", user.ID)

	return user, nil
}

// Logout revokes the presented refresh token. Unknown tokens revoke
// nothing and still succeed.
func (i *Identity) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := i.sessions.RevokeByToken(ctx, refreshToken); err != nil {
		if errors.Is(err, model.ErrSessionInvalid) {
			return nil
		}
		return err
	}
	return nil
}

func (i *Identity) checkLimit(ctx context.Context, key string, limit int, window time.Duration) error {
	verdict, err := i.limiter.Check(ctx, key, limit, window)
	if err != nil {
		return fmt.Errorf("check rate limit: %w", err)
	}
	if !verdict.Allowed {
		return &model.RateLimitError{ResetAt: verdict.ResetAt}
	}
	return nil
}

// NormalizeHandle trims, case-folds, and length-caps a user-supplied
// handle. The cap counts runes so a multibyte handle is never cut into
// invalid UTF-8.
func NormalizeHandle(handle string) string {
	handle = strings.ToLower(strings.TrimSpace(handle))
	if utf8.RuneCountInString(handle) > handleMaxLength {
		runes := []rune(handle)
		handle = string(runes[:handleMaxLength])
	}
	return handle
}
