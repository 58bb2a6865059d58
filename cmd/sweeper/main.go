// Command sweeper runs the missed deadline sweep once and exits. It is meant
// for cron style schedulers; a second concurrent run exits with code 2.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-progress-api/internal/app"
	"github.com/noah-isme/thesis-progress-api/internal/models"
	"github.com/noah-isme/thesis-progress-api/pkg/config"
	appErrors "github.com/noah-isme/thesis-progress-api/pkg/errors"
	"github.com/noah-isme/thesis-progress-api/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Printf("failed to init logger: %v", err)
		return 1
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logr)
	if err != nil {
		logr.Error("failed to initialise application", zap.Error(err))
		return 1
	}
	defer application.Close() //nolint:errcheck

	result, err := application.Sweeper.Run(ctx, models.SystemActor())
	switch {
	case appErrors.Is(err, appErrors.ErrSweepInProgress):
		logr.Warn("another sweep is running")
		return 2
	case err != nil:
		logr.Error("sweep failed", zap.Error(err))
		return 1
	case result.Interrupted:
		logr.Warn("sweep interrupted", zap.Int("affected", result.AffectedCount))
		return 1
	}
	return 0
}
