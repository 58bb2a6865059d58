// Package app assembles the repositories, services and background workers
// shared by the API server and the one-shot sweeper.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-progress-api/internal/handler"
	"github.com/noah-isme/thesis-progress-api/internal/repository"
	"github.com/noah-isme/thesis-progress-api/internal/service"
	"github.com/noah-isme/thesis-progress-api/pkg/cache"
	"github.com/noah-isme/thesis-progress-api/pkg/config"
	"github.com/noah-isme/thesis-progress-api/pkg/database"
	"github.com/noah-isme/thesis-progress-api/pkg/jobs"
	"github.com/noah-isme/thesis-progress-api/pkg/messaging"
)

const (
	cacheNamespace  = "thesis"
	defaultCacheTTL = 5 * time.Minute
)

// App holds the wired services.
type App struct {
	DB      *sqlx.DB
	Cache   *repository.CacheRepository
	Metrics *service.MetricsService
	Tokens  *service.TokenService

	Submissions   *service.SubmissionService
	Revisions     *service.RevisionService
	Grading       *service.GradingService
	Sweeper       *service.SweepService
	Deadlines     *service.DeadlineService
	Notifications *service.NotificationService
	Progress      *service.ProgressService
	Export        *service.ExportService

	queue    *jobs.Queue
	producer *messaging.Producer
	logger   *zap.Logger
}

// New connects to the backing stores, applies migrations when enabled and
// wires every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Database.AutoMigrate {
		version, err := database.Migrate(db, cfg.Database.Name)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("database migrated", zap.Uint("version", version))
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, running without cache and distributed sweep lock", zap.Error(err))
		redisClient = nil
	}

	a := &App{
		DB:      db,
		Cache:   repository.NewCacheRepository(redisClient, logger),
		Metrics: service.NewMetricsService(),
		Tokens: service.NewTokenService(service.TokenConfig{
			Secret: cfg.JWT.Secret,
			Issuer: cfg.JWT.Issuer,
			Expiry: cfg.JWT.Expiration,
		}),
		logger: logger,
	}
	cacheSvc := service.NewCacheService(a.Cache, a.Metrics, service.CacheOptions{
		Enabled:    a.Cache.Enabled(),
		Namespace:  cacheNamespace,
		DefaultTTL: defaultCacheTTL,
	}, logger)

	studentRepo := repository.NewStudentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	deadlineRepo := repository.NewDeadlineRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationOpts := []service.NotificationServiceOption{
		service.WithNotificationCache(cacheSvc),
		service.WithNotificationMetrics(a.Metrics),
	}
	if cfg.Notifications.PublishEnabled {
		publisher, err := a.startPublisher(ctx, cfg.Notifications)
		if err != nil {
			logger.Warn("notification publishing disabled", zap.Error(err))
		} else {
			notificationOpts = append(notificationOpts, service.WithNotificationPublisher(publisher))
		}
	}
	a.Notifications = service.NewNotificationService(notificationRepo, logger, notificationOpts...)

	a.Submissions = service.NewSubmissionService(submissionRepo, studentRepo, logger,
		service.WithSubmissionNotifier(a.Notifications),
		service.WithSubmissionCache(cacheSvc),
		service.WithSubmissionMetrics(a.Metrics),
	)
	a.Revisions = service.NewRevisionService(submissionRepo, studentRepo, a.Notifications, cacheSvc, a.Metrics, logger)
	a.Grading = service.NewGradingService(gradeRepo, studentRepo, logger,
		service.WithGradingNotifier(a.Notifications),
		service.WithGradingCache(cacheSvc),
		service.WithGradingMetrics(a.Metrics),
	)
	a.Sweeper = service.NewSweepService(deadlineRepo, gradeRepo, service.SweepConfig{
		BatchSize: cfg.Sweeper.BatchSize,
		LockTTL:   cfg.Sweeper.LockTTL,
	}, logger,
		service.WithSweepLocker(a.Cache),
		service.WithSweepNotifier(a.Notifications),
		service.WithSweepCache(cacheSvc),
		service.WithSweepMetrics(a.Metrics),
	)
	a.Deadlines = service.NewDeadlineService(deadlineRepo, cacheSvc, validator.New(), logger)
	a.Progress = service.NewProgressService(studentRepo, submissionRepo, gradeRepo, cacheSvc, cfg.Progress.CacheTTL, logger)
	a.Export = service.NewExportService(a.Progress, logger)

	return a, nil
}

func (a *App) startPublisher(ctx context.Context, cfg config.NotificationsConfig) (*service.NotificationPublisher, error) {
	producer, err := messaging.NewProducer(messaging.Config{Brokers: cfg.Brokers, Topic: cfg.Topic})
	if err != nil {
		return nil, err
	}
	publisher := service.NewNotificationPublisher(producer, a.Metrics, a.logger)
	queue := jobs.NewQueue("notifications", publisher.Handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     a.logger,
		OnGiveUp:   publisher.GiveUp,
	})
	publisher.Bind(queue)
	queue.Start(context.WithoutCancel(ctx))

	a.producer = producer
	a.queue = queue
	a.logger.Info("notification publishing enabled", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return publisher, nil
}

// Handlers builds the HTTP handlers over the wired services.
func (a *App) Handlers() handler.Handlers {
	return handler.Handlers{
		Submissions:   handler.NewSubmissionHandler(a.Submissions, a.Revisions),
		Grades:        handler.NewGradeHandler(a.Grading, a.Export),
		Sweeps:        handler.NewSweepHandler(a.Sweeper),
		Deadlines:     handler.NewDeadlineHandler(a.Deadlines),
		Notifications: handler.NewNotificationHandler(a.Notifications),
		Progress:      handler.NewProgressHandler(a.Progress),
	}
}

// Checks lists the dependencies probed by the readiness endpoint.
func (a *App) Checks() map[string]handler.Pinger {
	checks := map[string]handler.Pinger{"postgres": a.DB}
	if a.Cache.Enabled() {
		checks["redis"] = handler.PingerFunc(a.Cache.Ping)
	}
	return checks
}

// Close drains the delivery queue and releases connections.
func (a *App) Close() error {
	var errs []error
	if a.queue != nil {
		a.queue.Stop()
	}
	if a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	errs = append(errs, a.Cache.Close(), a.DB.Close())
	return errors.Join(errs...)
}
