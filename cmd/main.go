package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/api/http/cookie"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/api/http/handler"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/api/http/middleware"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/api/http/server"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/botcheck"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/config"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/logger"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/mailer"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/password"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/rate"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/repository/postgres"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/service"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	adminDB, err := postgres.NewAdminConnection(ctx, cfg.Database.AdminDSN)
	if err != nil {
		logger.Fatal("failed to initialize privileged storage", "error", err)
	}
	defer adminDB.Close()

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db, adminDB)
	sessionRepo := postgres.NewSessionRepository(db)
	otpRepo := postgres.NewOTPRepository(adminDB)

	var limiter model.RateLimiter
	if cfg.Redis.Addr != "" {
		limiter = rate.NewRedisLimiter(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), "rl")
	} else {
		logger.Info("no redis address configured, using in-process rate limiter")
		limiter = rate.NewMemoryLimiter()
	}

	var bots model.BotVerifier
	if cfg.BotCheck.Enabled {
		bots = botcheck.NewClient(cfg.BotCheck.URL, cfg.BotCheck.Secret, cfg.BotCheck.Timeout)
	}

	tokenManager := token.NewJWT(cfg.Session.Secret, cfg.Session.AccessTTL, cfg.Session.RefreshTTL)
	hasher := password.NewHasher()

	sessionService := service.NewSession(tokenManager, sessionRepo, userRepo, logger)
	identityService, err := service.NewIdentity(userRepo, sessionService, hasher, bots, limiter, logger, service.IdentityConfig{
		LoginIPLimit:       cfg.RateLimit.LoginIPLimit,
		LoginHandleLimit:   cfg.RateLimit.LoginHandleLimit,
		LoginNoBotLimit:    cfg.RateLimit.LoginNoBotLimit,
		LoginWindow:        cfg.RateLimit.LoginWindow,
		RegisterIPLimit:    cfg.RateLimit.RegisterIPLimit,
		RegisterNoBotLimit: cfg.RateLimit.RegisterNoBotLimit,
		RegisterWindow:     cfg.RateLimit.RegisterWindow,
		LegacyEmailDomain:  cfg.Legacy.EmailDomain,
	})
	if err != nil {
		logger.Fatal("failed to initialize identity service", "error", err)
	}

	mail := mailer.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	recoveryService := service.NewRecovery(userRepo, otpRepo, sessionService, hasher, mail, limiter, logger, service.RecoveryConfig{
		OTPDigits:         cfg.Recovery.OTPDigits,
		OTPTTL:            cfg.Recovery.OTPTTL,
		MailEnabled:       cfg.Recovery.MailEnabled,
		MailSubject:       cfg.Recovery.MailSubject,
		IPLimit:           cfg.RateLimit.RecoveryIPLimit,
		OwnerLimit:        cfg.RateLimit.RecoveryOwnerLimit,
		Window:            cfg.RateLimit.RecoveryWindow,
		LegacyEmailDomain: cfg.Legacy.EmailDomain,
	})

	cookies := cookie.Config{
		AccessName:   cfg.Session.AccessCookie,
		RefreshName:  cfg.Session.RefreshCookie,
		RememberName: cfg.Session.RememberCookie,
		Domain:       cfg.Session.CookieDomain,
		Secure:       cfg.Production,
	}

	gateway := middleware.NewGateway(sessionService, userRepo, limiter, cookies, middleware.GatewayConfig{
		Production:    cfg.Production,
		RenewWithin:   cfg.Session.RenewWithin,
		PublicIPLimit: cfg.RateLimit.PublicIPLimit,
		PublicWindow:  cfg.RateLimit.PublicWindow,
	}, logger)

	router := server.NewRouter(
		gateway,
		middleware.NewLogging(logger),
		handler.NewAuth(identityService, sessionService, cookies, logger),
		handler.NewRecovery(recoveryService, logger),
	)

	srv := server.New(server.Config{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, router, logger)

	logAppVersion(logger)

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server terminated", "error", err)
	}

	logger.Info("shutdown complete")
}

func logAppVersion(l *logger.Logger) {
	l.Info("build info",
		"version", buildVersion,
		"date", buildDate,
		"commit", buildCommit)
}
