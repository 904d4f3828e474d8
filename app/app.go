// Package app wires configuration, storage, the ORCID client and the
// notification channels into the services shared by every entry point.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"orquidea/config"
	"orquidea/notify"
	"orquidea/providers/orcid"
	"orquidea/services"
	"orquidea/storage"
)

// App bundles the wired services.
type App struct {
	Store      *storage.Store
	Fetcher    *orcid.Fetcher
	Monitoring *services.MonitoringService
	Updater    *services.UpdateService
}

// New connects to the database, migrates it and builds the services.
func New(ctx context.Context, cfg *config.Config, logging *zap.Logger) (*App, error) {
	db, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	if err := storage.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	store := storage.NewStore(db)

	notifier, err := NewNotifier(cfg, store, logging)
	if err != nil {
		return nil, err
	}

	var archive services.SnapshotArchive
	if cfg.ArchiveEnabled() {
		a, err := storage.NewArchive(ctx, cfg, logging)
		if err != nil {
			return nil, fmt.Errorf("snapshot archive: %w", err)
		}
		archive = a
		logging.Info("Snapshot archive enabled", zap.String("bucket", cfg.S3Bucket))
	}

	fetcher := orcid.NewFetcher(cfg, logging)
	updater := services.NewUpdateService(store, fetcher, notifier, archive,
		services.NewRunGuard(cfg.RunLockPath), logging, cfg.UpdateConcurrency)

	return &App{
		Store:      store,
		Fetcher:    fetcher,
		Monitoring: services.NewMonitoringService(store, logging),
		Updater:    updater,
	}, nil
}

// NewNotifier builds the channels listed in NOTIFY_CHANNELS. An enabled
// channel without credentials is a configuration error.
func NewNotifier(cfg *config.Config, pruner services.SubscriptionPruner, logging *zap.Logger) (*services.Notifier, error) {
	var (
		email   services.EmailSender
		push    services.PushSender
		enabled []string
	)
	if cfg.ChannelEnabled("email") {
		mailer, err := notify.NewMailer(cfg, logging)
		if err != nil {
			return nil, err
		}
		email = mailer
		enabled = append(enabled, "email")
	}
	if cfg.ChannelEnabled("push") {
		pusher, err := notify.NewPusher(cfg, logging)
		if err != nil {
			return nil, err
		}
		push = pusher
		enabled = append(enabled, "push")
	}
	if len(enabled) == 0 {
		logging.Warn("No notification channels enabled. Check NOTIFY_CHANNELS in .env")
	}
	logging.Info("Notification channels loaded", zap.Strings("channels", enabled))
	return services.NewNotifier(email, push, pruner, logging), nil
}

// NewCron schedules the update check in the configured timezone.
func NewCron(schedule, timezone string, updater *services.UpdateService, logging *zap.Logger) (*cron.Cron, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(schedule, func() {
		logging.Info("Running scheduled update check...")
		RunScheduled(context.Background(), updater, logging)
	})
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", schedule, err)
	}
	return c, nil
}

// WaitForCron stops the scheduler and waits up to timeout for a running
// update check to finish.
func WaitForCron(c *cron.Cron, timeout time.Duration) error {
	select {
	case <-c.Stop().Done():
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("scheduled update check still running after %s", timeout)
	}
}

// RunScheduled runs one update check and logs its outcome.
func RunScheduled(ctx context.Context, updater *services.UpdateService, logging *zap.Logger) (*services.RunReport, error) {
	report, err := updater.RunOnce(ctx)
	switch {
	case errors.Is(err, services.ErrRunInProgress):
		logging.Warn("Skipping update check, previous run still active")
	case err != nil:
		logging.Error("Update check failed", zap.Error(err))
	default:
		logging.Info("Update check completed",
			zap.String("run_id", report.RunID),
			zap.Int("new_publications", report.NewPublications),
			zap.Int("failed", report.Failed))
	}
	return report, err
}
