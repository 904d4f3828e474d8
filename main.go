package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"orquidea/app"
	"orquidea/config"
)

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wired, err := app.New(ctx, cfg, logging)
	if err != nil {
		logging.Fatal("Startup failed", zap.Error(err))
	}

	// Setup Cron
	var cronScheduler *cron.Cron
	if cfg.CronEnabled {
		cronScheduler, err = app.NewCron(cfg.CronSchedule, cfg.CronTimezone, wired.Updater, logging)
		if err != nil {
			logging.Fatal("Invalid cron configuration", zap.Error(err))
		}
		cronScheduler.Start()
		logging.Info("Update check scheduled",
			zap.String("schedule", cfg.CronSchedule),
			zap.String("timezone", cfg.CronTimezone))
	}

	router := newRouter(wired.Monitoring, wired.Updater, wired.Fetcher, cfg.CronSecret, logging)

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// a cron trigger runs the whole update check inside the request
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server shutdown failed", zap.Error(err))
	}
	if cronScheduler != nil {
		if err := app.WaitForCron(cronScheduler, 5*time.Minute); err != nil {
			logging.Warn("Cron shutdown incomplete", zap.Error(err))
		}
	}
}
