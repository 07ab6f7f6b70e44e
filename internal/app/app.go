// Package app assembles the HTTP server and its backing stores from
// configuration. It is shared by cmd/server and the compass serve command.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gyndok/lancet-obesity-compass/internal/api"
	"github.com/gyndok/lancet-obesity-compass/internal/cache"
	"github.com/gyndok/lancet-obesity-compass/internal/database"
	"github.com/gyndok/lancet-obesity-compass/internal/domain"
	"github.com/gyndok/lancet-obesity-compass/internal/feedback"
	"github.com/gyndok/lancet-obesity-compass/internal/repository"
	"github.com/gyndok/lancet-obesity-compass/internal/service"
)

// App owns the HTTP server and every resource it was built on.
type App struct {
	Server   *api.Server
	db       *database.DB
	cache    domain.ResultCache
	feedback feedback.Store
	logger   *logrus.Logger
}

// New builds the application. With the database enabled, pending migrations
// are applied and assessments are persisted.
func New(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger) (*App, error) {
	cfg := configManager.GetConfig()
	a := &App{logger: logger}

	var classifierOpts []service.ClassifierOption
	var serverOpts []api.ServerOption

	if cfg.Database.Enabled {
		if err := Migrate(ctx, configManager, logger, MigrateUp); err != nil {
			return nil, err
		}

		db, err := database.NewConnection(ctx, database.ConfigFromDomain(cfg.Database), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.db = db

		classifierOpts = append(classifierOpts,
			service.WithAssessmentRepository(repository.NewAssessmentRepository(db.Pool, logger)))
		serverOpts = append(serverOpts, api.WithHealthCheck("database", db.Health))
	}

	a.cache = cache.New(cfg.Cache, logger)
	classifierOpts = append(classifierOpts, service.WithResultCache(a.cache, cfg.Cache.DefaultTTL))
	if redisCache, ok := a.cache.(*cache.RedisCache); ok {
		serverOpts = append(serverOpts, api.WithHealthCheck("cache", redisCache.Health))
	}

	var databaseURL string
	if cfg.Feedback.Backend == feedback.BackendPostgres {
		databaseURL = configManager.GetDatabaseConnectionString()
	}
	store, err := feedback.NewStore(cfg.Feedback.Backend, cfg.Feedback.SQLitePath, databaseURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open feedback store: %w", err)
	}
	a.feedback = store
	serverOpts = append(serverOpts, api.WithFeedbackStore(store))

	engine := service.NewObesityRuleEngine(logger, nil)
	classifier := service.NewClassifierService(logger, engine, classifierOpts...)
	a.Server = api.NewServer(configManager, logger, classifier, serverOpts...)

	logger.WithFields(logrus.Fields{
		"database":         cfg.Database.Enabled,
		"feedback_backend": cfg.Feedback.Backend,
		"production":       configManager.IsProduction(),
	}).Info("Application initialized")

	return a, nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.Server.Start(ctx)
}

// Close releases the feedback store, cache and database pool.
func (a *App) Close() {
	if a.feedback != nil {
		if err := a.feedback.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close feedback store")
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close result cache")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

// MigrateDirection selects which way Migrate moves the schema.
type MigrateDirection string

const (
	MigrateUp   MigrateDirection = "up"
	MigrateDown MigrateDirection = "down"
)

// Migrate applies all pending migrations, or rolls back one.
func Migrate(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger, direction MigrateDirection) error {
	runner, err := database.NewMigrationRunner(
		configManager.GetDatabaseConnectionString(),
		configManager.GetDatabaseConfig().MigrationsPath,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer runner.Close()

	switch direction {
	case MigrateUp:
		return runner.Up(ctx)
	case MigrateDown:
		return runner.Down(ctx)
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
}
