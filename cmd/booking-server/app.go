package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinic/booking/internal/config"
	"github.com/clinic/booking/internal/domain/identity"
	"github.com/clinic/booking/internal/domain/scheduling"
	"github.com/clinic/booking/internal/platform/db"
	"github.com/clinic/booking/internal/platform/lock"
	"github.com/clinic/booking/internal/platform/notification"
	"github.com/clinic/booking/internal/platform/telemetry"
)

// app holds the wired services shared by serve and the one-shot commands.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	pool      *pgxpool.Pool
	redis     *redis.Client
	collector *telemetry.Collector

	identity   *identity.Service
	directory  identity.Directory
	scheduling *scheduling.Service
	locker     lock.Locker

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, collector: telemetry.NewCollector()}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		return nil, err
	}
	a.pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	logger.Info().Msg("connected to database")

	a.identity = identity.NewService(identity.NewAccountRepoPG(a.pool))
	a.directory = a.identity
	a.locker = lock.Noop{}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		a.closers = append(a.closers, a.redis.Close)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		a.directory = identity.NewCachedDirectory(a.identity, a.redis, cfg.AccountTTL, logger)
		a.locker = lock.NewRedisLocker(a.redis, logger)
		logger.Info().Msg("connected to redis")
	}

	sender, closeSender, err := buildSender(cfg, logger)
	if err != nil {
		return nil, err
	}
	if closeSender != nil {
		a.closers = append(a.closers, closeSender)
	}
	mailer := notification.NewMailer(sender, notification.MailerConfig{
		Transport: cfg.MailTransport,
		From:      cfg.MailFrom,
		Timeout:   cfg.MailTimeout,
		Recorder:  a.collector,
	}, logger)

	a.scheduling = scheduling.NewService(
		scheduling.NewAvailabilityRepoPG(a.pool),
		scheduling.NewAppointmentRepoPG(a.pool),
		a.directory,
		db.NewTxManager(a.pool),
		mailer,
		notification.NewTemplateEngine(),
		scheduling.WithLocation(loc),
		scheduling.WithLogger(logger.With().Str("component", "scheduling").Logger()),
	)
	ready = true
	return a, nil
}

// buildSender picks the mail transport named by MAIL_TRANSPORT. The
// returned close function may be nil.
func buildSender(cfg *config.Config, logger zerolog.Logger) (notification.Sender, func() error, error) {
	switch cfg.MailTransport {
	case config.MailSMTP:
		return notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}), nil, nil
	case config.MailAMQP:
		sender, closeFn, err := notification.DialAMQP(cfg.AMQPURL, cfg.AMQPMailQueue)
		if err != nil {
			return nil, nil, err
		}
		return sender, closeFn, nil
	case config.MailLog, "":
		return notification.NewLogSender(logger), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
