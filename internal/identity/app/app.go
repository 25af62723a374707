package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	httpapi "github.com/aussiebroadwan/iworkcore/internal/identity/http"
	"github.com/aussiebroadwan/iworkcore/internal/identity/mail"
	"github.com/aussiebroadwan/iworkcore/internal/identity/metrics"
	"github.com/aussiebroadwan/iworkcore/internal/identity/service"
	"github.com/aussiebroadwan/iworkcore/internal/identity/store"
	"github.com/aussiebroadwan/iworkcore/internal/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/iworkcore/pkg/cryptox"
	"github.com/aussiebroadwan/iworkcore/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// mailQueue is satisfied by both the in-process dispatcher and the redis
// queue.
type mailQueue interface {
	mail.Queue
	Start()
	Stop(ctx context.Context)
}

// Application encapsulates the identity service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	keys     Keys
	metrics  *metrics.Metrics // nil when METRICS_ENABLED=false
	mail     mailQueue
	mailPing httpapi.Pinger

	// Services
	tokenIssuer         *service.TokenIssuer
	sessionService      *service.SessionService
	passwordResets      *service.PasswordResetService
	verificationService *service.VerificationService
	twoFactorService    *service.TwoFactorService
	onboardingService   *service.OnboardingService
	invitationService   *service.InvitationService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "identity-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing and fail early if it is unusable
	cryptox.SetPepperPath(app.cfg.PepperFile)
	if err := cryptox.LoadPepper(); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keys, err := InitKeys(app.cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keys = keys

	if app.cfg.MetricsEnabled {
		app.metrics = metrics.New()
	}

	if err := app.initMail(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()
	app.mail.Start()

	app.logger.Info("identity service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity service...")

	// Give outstanding requests and queued mail a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Requests are drained, so nothing enqueues after this point
	app.mail.Stop(ctx)
	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("identity service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initMail picks the sender and the queue in front of it
func (app *Application) initMail() error {
	mc := app.cfg.Mail

	var sender mail.Sender
	if mc.SMTPHost != "" {
		sender = &mail.SMTPSender{
			Host:     mc.SMTPHost,
			Port:     mc.SMTPPort,
			Username: mc.SMTPUsername,
			Password: mc.SMTPPassword,
			From:     mc.From,
			Timeout:  10 * time.Second,
		}
		app.logger.Info("mail delivered over smtp", "host", mc.SMTPHost, "port", mc.SMTPPort)
	} else {
		sender = &mail.LogSender{Logger: app.logger}
		app.logger.Warn("SMTP_HOST not configured, emails are only logged")
	}

	if mc.RedisURL != "" {
		q, err := mail.NewRedisQueue(context.Background(), mc.RedisURL, sender, app.logger)
		if err != nil {
			return fmt.Errorf("failed to connect mail queue: %w", err)
		}
		q.Metrics = app.metrics
		app.mail = q
		app.mailPing = func(ctx context.Context) error { return q.Client.Ping(ctx).Err() }
		return nil
	}

	d := mail.NewDispatcher(sender, app.logger, mc.Workers, mc.QueueSize)
	d.Metrics = app.metrics
	if mc.RatePerSecond > 0 {
		d.Limiter = rate.NewLimiter(rate.Limit(mc.RatePerSecond), max(1, int(mc.RatePerSecond)))
	}
	app.mail = d
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	links := service.Links{FrontendURL: app.cfg.FrontendURL}

	app.tokenIssuer = &service.TokenIssuer{
		Store:            app.db,
		AccessSigner:     app.keys.AccessSigner,
		AccessVerifier:   app.keys.AccessVerifier,
		RefreshSigner:    app.keys.RefreshSigner,
		RefreshVerifier:  app.keys.RefreshVerifier,
		Issuer:           app.cfg.Issuer,
		AccessTTL:        app.cfg.AccessTTL,
		RefreshTTL:       app.cfg.RefreshTTL,
		TwoFactorTTL:     app.cfg.TwoFactorTokenTTL,
		MaxRefreshTokens: app.cfg.MaxRefreshTokens,
	}

	app.verificationService = &service.VerificationService{
		Store:  app.db,
		Mailer: app.mail,
		Links:  links,
		TTL:    app.cfg.EmailVerificationTTL,
	}
	app.twoFactorService = &service.TwoFactorService{
		Store:  app.db,
		Issuer: app.cfg.TOTPIssuer,
	}
	app.sessionService = &service.SessionService{
		Store:           app.db,
		Tokens:          app.tokenIssuer,
		Verification:    app.verificationService,
		TwoFactor:       app.twoFactorService,
		Metrics:         app.metrics,
		VerificationTTL: app.cfg.SignUpVerificationTTL,
	}
	app.passwordResets = &service.PasswordResetService{
		Store:  app.db,
		Tokens: app.tokenIssuer,
		Mailer: app.mail,
		Links:  links,
		TTL:    app.cfg.PasswordResetTTL,
	}
	app.onboardingService = &service.OnboardingService{
		Store:   app.db,
		Metrics: app.metrics,
	}
	app.invitationService = &service.InvitationService{
		Store:  app.db,
		Mailer: app.mail,
		Links:  links,
		TTL:    app.cfg.InvitationTTL,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys.KeySet,
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.Tokens = app.tokenIssuer
	router.Sessions = app.sessionService
	router.PasswordResets = app.passwordResets
	router.Verification = app.verificationService
	router.TwoFactor = app.twoFactorService
	router.Onboarding = app.onboardingService
	router.Invitations = app.invitationService
	router.Metrics = app.metrics
	router.MailPing = app.mailPing // nil with the in-process dispatcher
	router.RateLimits = app.cfg.RateLimits
	router.AllowedOrigins = app.cfg.CORSOrigins
	router.Dev = app.cfg.IsDev()
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
