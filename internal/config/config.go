package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
)

// Config contains gateway configuration parameters.
type Config struct {
	LogLevel   int  `env:"LOG_LEVEL" envDefault:"0"`
	Production bool `env:"PRODUCTION" envDefault:"false"`

	HTTP      HTTP      `envPrefix:"HTTP_"`
	Database  Database  `envPrefix:"DATABASE_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Session   Session   `envPrefix:"SESSION_"`
	RateLimit RateLimit `envPrefix:"RATELIMIT_"`
	Recovery  Recovery  `envPrefix:"RECOVERY_"`
	BotCheck  BotCheck  `envPrefix:"BOTCHECK_"`
	SMTP      SMTP      `envPrefix:"SMTP_"`
	Legacy    Legacy    `envPrefix:"LEGACY_"`
}

// HTTP contains HTTP server parameters.
type HTTP struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Database contains identity-store connection parameters. AdminDSN is the
// privileged credential used for administrative writes (force password
// set, confirmation, migration); DSN is the ordinary read credential.
type Database struct {
	DSN      string `env:"DSN"`
	AdminDSN string `env:"ADMIN_DSN"`
}

// Redis contains rate-limit store parameters. An empty address selects
// the in-process fallback limiter, which is only safe for
// single-instance deployments.
type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// Session contains token and cookie parameters.
type Session struct {
	Secret         string        `env:"SECRET"`
	AccessTTL      time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL     time.Duration `env:"REFRESH_TTL" envDefault:"720h"`
	RenewWithin    time.Duration `env:"RENEW_WITHIN" envDefault:"2m"`
	AccessCookie   string        `env:"ACCESS_COOKIE" envDefault:"hr_access"`
	RefreshCookie  string        `env:"REFRESH_COOKIE" envDefault:"hr_session"`
	RememberCookie string        `env:"REMEMBER_COOKIE" envDefault:"hr_remember"`
	CookieDomain   string        `env:"COOKIE_DOMAIN"`
}

// RateLimit contains per-endpoint fixed-window budgets.
type RateLimit struct {
	LoginIPLimit       int           `env:"LOGIN_IP_LIMIT" envDefault:"10"`
	LoginHandleLimit   int           `env:"LOGIN_HANDLE_LIMIT" envDefault:"5"`
	LoginNoBotLimit    int           `env:"LOGIN_NO_BOT_LIMIT" envDefault:"3"`
	LoginWindow        time.Duration `env:"LOGIN_WINDOW" envDefault:"5m"`
	RegisterIPLimit    int           `env:"REGISTER_IP_LIMIT" envDefault:"5"`
	RegisterNoBotLimit int           `env:"REGISTER_NO_BOT_LIMIT" envDefault:"2"`
	RegisterWindow     time.Duration `env:"REGISTER_WINDOW" envDefault:"1h"`
	RecoveryIPLimit    int           `env:"RECOVERY_IP_LIMIT" envDefault:"5"`
	RecoveryOwnerLimit int           `env:"RECOVERY_OWNER_LIMIT" envDefault:"5"`
	RecoveryWindow     time.Duration `env:"RECOVERY_WINDOW" envDefault:"15m"`
	PublicIPLimit      int           `env:"PUBLIC_IP_LIMIT" envDefault:"60"`
	PublicWindow       time.Duration `env:"PUBLIC_WINDOW" envDefault:"1m"`
}

// Recovery contains one-time-code parameters.
type Recovery struct {
	OTPDigits   int           `env:"OTP_DIGITS" envDefault:"6"`
	OTPTTL      time.Duration `env:"OTP_TTL" envDefault:"10m"`
	MailEnabled bool          `env:"MAIL_ENABLED" envDefault:"true"`
	MailSubject string        `env:"MAIL_SUBJECT" envDefault:"Your meal portal recovery code"`
}

// BotCheck contains bot-verification service parameters.
type BotCheck struct {
	Enabled bool          `env:"ENABLED" envDefault:"false"`
	URL     string        `env:"URL" envDefault:"https://challenges.cloudflare.com/turnstile/v0/siteverify"`
	Secret  string        `env:"SECRET"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

// SMTP contains mail relay parameters.
type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
}

// Legacy contains pre-migration account parameters.
type Legacy struct {
	// EmailDomain is the non-deliverable domain of synthetic placeholder
	// addresses, <handle>@<EmailDomain>.
	EmailDomain string `env:"EMAIL_DOMAIN" envDefault:"students.hostel.invalid"`
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Validate checks every required value. Absence of any of them is a
// startup-time fatal condition, never a per-request one.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.DSN == "" {
		errs = append(errs, fmt.Errorf("%w: DATABASE_DSN is required", model.ErrConfiguration))
	}
	if c.Database.AdminDSN == "" {
		errs = append(errs, fmt.Errorf("%w: DATABASE_ADMIN_DSN is required", model.ErrConfiguration))
	}
	if c.Session.Secret == "" {
		errs = append(errs, fmt.Errorf("%w: SESSION_SECRET is required", model.ErrConfiguration))
	}
	if c.Session.AccessTTL <= 0 || c.Session.RefreshTTL <= c.Session.AccessTTL {
		errs = append(errs, fmt.Errorf("%w: session TTLs must satisfy 0 < access < refresh", model.ErrConfiguration))
	}
	if c.Recovery.OTPDigits < 6 {
		errs = append(errs, fmt.Errorf("%w: RECOVERY_OTP_DIGITS must be at least 6", model.ErrConfiguration))
	}
	if c.Recovery.OTPTTL <= 0 || c.Recovery.OTPTTL > time.Hour {
		errs = append(errs, fmt.Errorf("%w: RECOVERY_OTP_TTL must be within (0, 1h]", model.ErrConfiguration))
	}
	if c.Recovery.MailEnabled {
		if c.SMTP.Host == "" {
			errs = append(errs, fmt.Errorf("%w: SMTP_HOST is required when recovery mail is enabled", model.ErrConfiguration))
		}
		if c.SMTP.From == "" {
			errs = append(errs, fmt.Errorf("%w: SMTP_FROM is required when recovery mail is enabled", model.ErrConfiguration))
		}
	}
	if c.BotCheck.Enabled && c.BotCheck.Secret == "" {
		errs = append(errs, fmt.Errorf("%w: BOTCHECK_SECRET is required when bot verification is enabled", model.ErrConfiguration))
	}
	if c.Legacy.EmailDomain == "" {
		errs = append(errs, fmt.Errorf("%w: LEGACY_EMAIL_DOMAIN must not be empty", model.ErrConfiguration))
	}

	return errors.Join(errs...)
}
