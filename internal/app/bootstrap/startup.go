// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/dalemusser/groupdeal/internal/app/refund"
	activitystore "github.com/dalemusser/groupdeal/internal/app/store/activities"
	groupstore "github.com/dalemusser/groupdeal/internal/app/store/groups"
	participationstore "github.com/dalemusser/groupdeal/internal/app/store/participations"
	"github.com/dalemusser/groupdeal/internal/app/sweeper"
	"github.com/dalemusser/groupdeal/internal/app/system/tasks"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// runner owns the background jobs started here and stopped in Shutdown.
var runner *tasks.Runner

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
// It starts the background sweeper that advances activity windows and
// fails expired groups.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase
	clk := clock.New()

	sw := sweeper.New(
		groupstore.New(db),
		participationstore.New(db),
		activitystore.New(db),
		refund.NewLogExecutor(logger),
		clk,
		logger,
	)

	runner = tasks.NewRunner(clk, logger, sweeper.Job(sw, appCfg.SweepInterval))
	runner.Start()

	logger.Info("background sweeper started",
		zap.Duration("interval", appCfg.SweepInterval))
	return nil
}
