// Package main initializes and starts the Tavola API server, setting up
// configuration, logging, the database, repositories, services, handlers,
// background jobs and optional TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/tavola/internal/config"
	"github.com/atinyakov/tavola/internal/db"
	"github.com/atinyakov/tavola/internal/logger"
	"github.com/atinyakov/tavola/internal/media"
	"github.com/atinyakov/tavola/internal/metrics"
	"github.com/atinyakov/tavola/internal/ratelimit"
	"github.com/atinyakov/tavola/internal/repository"
	"github.com/atinyakov/tavola/internal/server/handler/http"
	"github.com/atinyakov/tavola/internal/service"
	"github.com/atinyakov/tavola/internal/youtube"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse command-line, config file and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options, zapLogger); err != nil {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, options *config.Options, zapLogger *zap.Logger) error {
	// Initialize PostgreSQL connection and schema.
	postgresDB, err := db.InitPostgres(ctx, options.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("cannot init database: %w", err)
	}
	defer postgresDB.Close()

	// Repositories over the shared connection pool.
	users := repository.NewAdminUserRepository(postgresDB)
	sessions := repository.NewSessionRepository(postgresDB)
	settings := repository.NewSettingsRepository(postgresDB)

	reg := metrics.New()
	window := options.Session.InactivityTimeout

	// Business-logic services.
	manager := service.NewSessionManager(users, sessions, window, zapLogger, service.WithRecorder(reg))
	admins := service.NewAdminService(users, sessions, zapLogger)

	if b := options.Bootstrap; b.Password != "" {
		created, err := admins.EnsureAdmin(ctx, b.Username, b.Email, b.Password)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			zapLogger.Info("bootstrap admin created", zap.String("username", b.Username))
		}
	}

	// Optional stale session cleanup.
	if options.Session.PurgeSchedule != "" {
		stopPurge, err := db.StartSessionPurge(ctx, sessions, options.Session.PurgeSchedule, window, zapLogger)
		if err != nil {
			return err
		}
		defer stopPurge()
	}

	var signer http.UploadSigner
	if options.Media.Enabled() {
		presigner, err := media.NewPresigner(ctx, options.Media)
		if err != nil {
			return fmt.Errorf("init media uploads: %w", err)
		}
		signer = presigner
	}

	if options.CORS.ReflectAnyOrigin() {
		zapLogger.Warn("CORS reflects any origin with credentials allowed; set cors.allowed_origins in production")
	}

	router := http.NewRouter(http.Deps{
		Auth: &http.AuthHandler{
			Sessions:      manager,
			Users:         users,
			Window:        window,
			Warning:       options.Session.WarningWindow,
			SecureCookies: options.SecureCookies,
			Log:           zapLogger,
		},
		Categories: &http.CategoryHandler{Store: repository.NewCategoryRepository(postgresDB), Log: zapLogger},
		Dishes:     &http.DishHandler{Store: repository.NewDishRepository(postgresDB), Log: zapLogger},
		Videos:     &http.VideoHandler{Store: repository.NewVideoRepository(postgresDB), Log: zapLogger},
		Menu:       &http.MenuHandler{Store: repository.NewMenuItemRepository(postgresDB), Log: zapLogger},
		Settings:   &http.SettingsHandler{Store: settings, Log: zapLogger},
		Site: &http.SiteHandler{
			Settings:  settings,
			Feed:      youtube.New(options.YouTube.BaseURL, options.YouTube.MaxResults, nil),
			SiteURL:   options.SiteURL,
			ChannelID: options.YouTube.ChannelID,
			Log:       zapLogger,
		},
		Media:  &http.MediaHandler{Signer: signer, Log: zapLogger},
		Health: &http.HealthHandler{DB: postgresDB, Log: zapLogger},

		Validator: manager,
		Limiter: ratelimit.New(
			options.RateLimit.Attempts,
			options.RateLimit.Window,
			ratelimit.WithMaxKeys(options.RateLimit.MaxKeys),
		),
		TrustProxy:     options.TrustProxy,
		Logins:         reg,
		Observer:       reg,
		Metrics:        reg.Handler(options.MetricsToken),
		AllowedOrigins: options.CORS.AllowedOrigins,
		Log:            zapLogger,
	})

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if options.TLSCert != "" {
			// Load server TLS certificate and key.
			cert, err := tls.LoadX509KeyPair(options.TLSCert, options.TLSKey)
			if err != nil {
				errCh <- fmt.Errorf("failed to load server TLS cert/key: %w", err)
				return
			}
			server.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
			zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
			errCh <- server.ListenAndServeTLS("", "")
			return
		}
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	zapLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
