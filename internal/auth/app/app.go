package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/starterkit/internal/auth/blob"
	httpapi "github.com/aussiebroadwan/starterkit/internal/auth/http"
	"github.com/aussiebroadwan/starterkit/internal/auth/notify"
	"github.com/aussiebroadwan/starterkit/internal/auth/service"
	"github.com/aussiebroadwan/starterkit/internal/auth/store"
	authredis "github.com/aussiebroadwan/starterkit/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/starterkit/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/starterkit/pkg/cryptox"
	"github.com/aussiebroadwan/starterkit/pkg/jwtx"
	"github.com/aussiebroadwan/starterkit/pkg/slogx"

	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         *sqlite.Store
	rdb        *redis.Client             // nil unless challenges live in Redis
	challenges *authredis.ChallengeStore // nil unless challenges live in Redis
	blobs      blob.Store
	uploads    http.Handler // set for the local blob provider
	notifier   notify.Notifier
	sealer     *cryptox.Sealer
	signer     jwtx.Signer
	keys       *jwtx.KeySet
	verifier   jwtx.Verifier

	// Services
	sessionService      *service.SessionService
	twoFactorService    *service.TwoFactorService
	avatarService       *service.AvatarService
	userService         *service.UserService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
	limits httpapi.RateLimits
}

// Option adjusts an Application before it is wired.
type Option func(*Application)

// WithRateLimits replaces the RATELIMIT_* derived tiers.
func WithRateLimits(l httpapi.RateLimits) Option {
	return func(app *Application) { app.limits = l }
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config, opts ...Option) (*Application, error) {
	app := &Application{
		cfg:    cfg,
		limits: httpapi.DefaultRateLimits(),
		logger: slogx.New(slogx.Config{
			Service: "starterkit-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}
	for _, opt := range opts {
		opt(app)
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	ctx := context.Background()
	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initChallenges(ctx); err != nil {
		_ = app.closeStores()
		return nil, err
	}
	if err := app.initBlobs(ctx); err != nil {
		_ = app.closeStores()
		return nil, err
	}
	if err := app.initNotifier(); err != nil {
		_ = app.closeStores()
		return nil, err
	}
	if err := app.initSecrets(); err != nil {
		_ = app.closeStores()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

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
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			_ = app.closeStores()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Handler exposes the router, mainly for in-process tests.
func (app *Application) Handler() http.Handler { return app.router }

// Close releases the stores of an Application that was never Run.
func (app *Application) Close() error { return app.closeStores() }

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) closeStores() error {
	var errs []error
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
			errs = append(errs, err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
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

// initChallenges connects to Redis when sign-in challenges are kept there.
func (app *Application) initChallenges(ctx context.Context) error {
	if app.cfg.Challenges.Backend != "redis" {
		return nil
	}

	rdb, err := authredis.Connect(ctx, app.cfg.Challenges.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to challenge store: %w", err)
	}
	app.rdb = rdb
	app.challenges = authredis.NewChallengeStore(rdb)

	app.logger.Info("sign-in challenges stored in redis")
	return nil
}

func (app *Application) initBlobs(ctx context.Context) error {
	bc := app.cfg.Blob
	switch bc.Provider {
	case "s3":
		s3, err := blob.NewS3Store(ctx, blob.S3Config{
			Endpoint:  bc.S3Endpoint,
			AccessKey: bc.S3AccessKey,
			SecretKey: bc.S3SecretKey,
			Bucket:    bc.S3Bucket,
			Region:    bc.S3Region,
			UseSSL:    bc.S3UseSSL,
			PublicURL: bc.S3PublicURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize avatar storage: %w", err)
		}
		app.blobs = s3
		app.logger.Info("avatars stored in s3", "endpoint", bc.S3Endpoint, "bucket", bc.S3Bucket)
	default:
		local, err := blob.NewLocalStore(bc.LocalDir, bc.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to initialize avatar storage: %w", err)
		}
		app.blobs = local
		app.uploads = local.Handler()
		app.logger.Info("avatars stored on disk", "dir", bc.LocalDir, "path", bc.LocalPath)
	}
	return nil
}

func (app *Application) initNotifier() error {
	sc := app.cfg.SMTP
	if sc.Host == "" {
		app.notifier = notify.NewLogNotifier(app.logger)
		app.logger.Warn("no SMTP host configured; security notices are only logged")
		return nil
	}

	mailer, err := notify.NewMailNotifier(notify.SMTPConfig{
		Host:     sc.Host,
		Port:     sc.Port,
		Username: sc.Username,
		Password: sc.Password,
		From:     sc.From,
		TLS:      sc.TLS,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}
	app.notifier = mailer
	return nil
}

// initSecrets loads the sealing key for TOTP secrets and the token signing key.
func (app *Application) initSecrets() error {
	sealer, err := cryptox.LoadSealer(app.cfg.MasterKeyFile)
	if err != nil {
		return fmt.Errorf("failed to load master key: %w", err)
	}
	if sealer.Ephemeral() {
		app.logger.Warn("no master key configured; two-factor secrets will be unreadable after a restart")
	}
	app.sealer = sealer

	signer, keys, verifier, err := InitAuthKeys(app.cfg, app.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.signer, app.keys, app.verifier = signer, keys, verifier
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	notices := &service.Notices{Notifier: app.notifier, App: app.cfg.AppName}

	app.sessionService = &service.SessionService{
		Store:  app.db,
		Signer: app.signer,
		Issuer: app.cfg.Issuer,
		TTL:    app.cfg.SessionTTL,
	}

	var challenges store.Challenges
	if app.challenges != nil {
		challenges = app.challenges
	}

	app.twoFactorService = &service.TwoFactorService{
		Store:            app.db,
		Challenges:       challenges,
		Sessions:         app.sessionService,
		Sealer:           app.sealer,
		Notices:          notices,
		AppName:          app.cfg.AppName,
		ChallengeTTL:     app.cfg.ChallengeTTL,
		TrustedDeviceTTL: app.cfg.TrustedDeviceTTL,
		MaxAttempts:      app.cfg.MaxAttempts,
		BackupCodeCount:  app.cfg.BackupCodeCount,
	}

	app.avatarService = &service.AvatarService{
		Store: app.db,
		Blobs: app.blobs,
	}

	app.userService = &service.UserService{
		Store:     app.db,
		Sessions:  app.sessionService,
		TwoFactor: app.twoFactorService,
		Avatars:   app.avatarService,
		Notices:   notices,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		challenges,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys,
		app.verifier,
		BuildVersion,
		app.db,
		app.logger,
		app.limits,
	)

	// Wire services to router
	router.UserService = app.userService
	router.SessionService = app.sessionService
	router.TwoFactorService = app.twoFactorService
	router.AvatarService = app.avatarService
	if app.challenges != nil {
		router.Challenges = app.challenges
	}
	if app.uploads != nil {
		router.Uploads = app.uploads
		router.UploadsPath = app.cfg.Blob.LocalPath
	}
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
