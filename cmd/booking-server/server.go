package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinic/booking/internal/config"
	"github.com/clinic/booking/internal/domain/identity"
	"github.com/clinic/booking/internal/domain/scheduling"
	"github.com/clinic/booking/internal/platform/auth"
	"github.com/clinic/booking/internal/platform/db"
	"github.com/clinic/booking/internal/platform/middleware"
	"github.com/clinic/booking/internal/platform/validation"
)

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return err
	}
	defer a.Close()

	e := newServer(a)

	if cfg.ReminderCron != "" {
		worker := scheduling.NewReminderWorker(a.scheduling, a.locker, a.collector, logger)
		if err := worker.Start(ctx, cfg.ReminderCron); err != nil {
			return err
		}
		defer worker.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the echo instance with middleware and routes.
func newServer(a *app) *echo.Echo {
	cfg, logger := a.cfg, a.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(a.collector.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(echomw.BodyLimit("64K"))
	e.Use(authMiddleware(cfg, logger))
	if cfg.RateLimitRPS > 0 {
		e.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
			IdleTTL:           10 * time.Minute,
		}))
	}

	e.GET("/health", db.HealthHandler(a.pool, a.pool))
	e.GET("/metrics", echo.WrapHandler(a.collector.Handler()))

	api := e.Group("/api/v1")
	identity.NewHandler(a.identity, a.directory).RegisterRoutes(api)

	booking := scheduling.NewHandler(a.scheduling, cfg.CronSecret, a.collector)
	booking.RegisterRoutes(api)
	booking.RegisterTaskRoutes(e)

	return e
}

// authMiddleware verifies bearer tokens when a signing key is configured.
// Without one, outside production, callers identify themselves by header.
func authMiddleware(cfg *config.Config, logger zerolog.Logger) echo.MiddlewareFunc {
	if cfg.AuthSigningKey != "" {
		return auth.JWTMiddleware(jwtConfig(cfg))
	}
	logger.Warn().
		Str("env", cfg.Env).
		Msgf("AUTH_SIGNING_KEY is not set; trusting %s and %s headers", auth.HeaderUserID, auth.HeaderUserRole)
	return auth.DevAuthMiddleware(auth.AuthSkipper)
}
