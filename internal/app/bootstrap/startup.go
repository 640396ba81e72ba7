// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/stratasheet/internal/app/store/oauthstate"
	"github.com/dalemusser/stratasheet/internal/app/store/orphans"
	"github.com/dalemusser/stratasheet/internal/app/store/ratelimit"
	"github.com/dalemusser/stratasheet/internal/app/system/metrics"
	"github.com/dalemusser/stratasheet/internal/app/system/seeding"
	"github.com/dalemusser/stratasheet/internal/app/system/tasks"
	"github.com/dalemusser/stratasheet/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs once after DB connections and schema/index setup are complete,
// but before the HTTP handler is built and requests are served.
//
// It seeds the configured admin account and starts the background jobs that
// retry orphaned blob deletes and purge expired OAuth state and stale login
// attempts. Returning an error aborts startup.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	appMetrics = metrics.New()

	seed := seeding.AdminSeed{
		Username: appCfg.SeedAdminUsername,
		Name:     appCfg.SeedAdminName,
		Password: appCfg.SeedAdminPassword,
	}
	if err := seeding.SeedAdmin(ctx, deps.MongoDatabase, seed, logger); err != nil {
		logger.Error("failed to seed admin user", zap.Error(err))
		return err
	}

	startTaskRunner(appCfg, deps, logger)

	return nil
}

// appMetrics is shared by the ingest pipeline, the summary limiter, the
// cleanup job and the /metrics endpoint.
var appMetrics *metrics.Metrics

// taskRunner is the global task runner instance, used for graceful shutdown.
var taskRunner *tasks.Runner

// startTaskRunner initializes and starts the background task runner.
func startTaskRunner(appCfg AppConfig, deps DBDeps, logger *zap.Logger) {
	db := deps.MongoDatabase
	taskRunner = tasks.New(logger, timeouts.Batch())

	taskRunner.Register(tasks.OrphanCleanupJob(
		orphans.New(db),
		deps.FileStorage,
		appMetrics,
		appCfg.OrphanCleanupInterval,
		logger,
	))
	taskRunner.Register(tasks.OAuthStateCleanupJob(oauthstate.New(db), logger))
	if appCfg.RateLimitEnabled {
		taskRunner.Register(tasks.RateLimitCleanupJob(loginLimits(appCfg, db), appCfg.RateLimitRetention, logger))
	}

	taskRunner.Start()
	logger.Info("background task runner started", zap.Strings("jobs", taskRunner.Jobs()))
}

// loginLimits builds the login attempt store from config.
func loginLimits(appCfg AppConfig, db *mongo.Database) *ratelimit.Store {
	return ratelimit.New(db, ratelimit.Config{
		MaxAttempts: appCfg.RateLimitLoginAttempts,
		Window:      appCfg.RateLimitLoginWindow,
		Lockout:     appCfg.RateLimitLoginLockout,
	})
}
