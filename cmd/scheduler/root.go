package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"orquidea/app"
	"orquidea/config"
	"orquidea/models"
	"orquidea/services"
)

type runMode int

const (
	modeSchedule runMode = iota
	modeOnce
	modeInterval
)

type schedulerFlags struct {
	once     bool
	interval time.Duration
	schedule string
}

// mode picks how the scheduler runs; --once and --interval exclude each other.
func (f schedulerFlags) mode() (runMode, error) {
	switch {
	case f.once && f.interval > 0:
		return 0, errors.New("--once and --interval are mutually exclusive")
	case f.once:
		return modeOnce, nil
	case f.interval < 0:
		return 0, fmt.Errorf("invalid --interval %s", f.interval)
	case f.interval > 0:
		return modeInterval, nil
	default:
		return modeSchedule, nil
	}
}

func newRootCommand() *cobra.Command {
	var flags schedulerFlags

	rootCmd := &cobra.Command{
		Use:           "scheduler",
		Short:         "Run the researcher update check outside the API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, err := flags.mode()
			if err != nil {
				return err
			}
			logging, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("can't initialize zap logger: %w", err)
			}
			defer logging.Sync()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load error: %w", err)
			}
			wired, err := app.New(cmd.Context(), cfg, logging)
			if err != nil {
				return err
			}

			switch mode {
			case modeOnce:
				return runOnce(cmd, wired.Updater, logging)
			case modeInterval:
				return runEvery(cmd.Context(), flags.interval, wired.Updater, logging)
			default:
				schedule := flags.schedule
				if schedule == "" {
					schedule = cfg.CronSchedule
				}
				return runCron(cmd.Context(), schedule, cfg.CronTimezone, wired.Updater, logging)
			}
		},
	}

	rootCmd.Flags().BoolVar(&flags.once, "once", false, "Run a single update check and exit")
	rootCmd.Flags().DurationVar(&flags.interval, "interval", 0, "Run an update check every interval (e.g. 6h)")
	rootCmd.Flags().StringVar(&flags.schedule, "schedule", "", "Cron expression overriding CRON_SCHEDULE")

	rootCmd.AddCommand(newTestNotifyCommand())
	return rootCmd
}

func runOnce(cmd *cobra.Command, updater *services.UpdateService, logging *zap.Logger) error {
	report, err := app.RunScheduled(cmd.Context(), updater, logging)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runEvery(ctx context.Context, interval time.Duration, updater *services.UpdateService, logging *zap.Logger) error {
	logging.Info("Update check running on interval", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	app.RunScheduled(ctx, updater, logging)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			app.RunScheduled(ctx, updater, logging)
		}
	}
}

func runCron(ctx context.Context, schedule, timezone string, updater *services.UpdateService, logging *zap.Logger) error {
	c, err := app.NewCron(schedule, timezone, updater, logging)
	if err != nil {
		return err
	}
	c.Start()
	logging.Info("Update check scheduled", zap.String("schedule", schedule), zap.String("timezone", timezone))

	<-ctx.Done()
	logging.Info("Waiting for running update check to finish")
	<-c.Stop().Done()
	return nil
}

func newTestNotifyCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:          "test-notify",
		Short:        "Send a sample notification through the enabled channels",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("can't initialize zap logger: %w", err)
			}
			defer logging.Sync()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load error: %w", err)
			}
			notifier, err := app.NewNotifier(cfg, nil, logging)
			if err != nil {
				return err
			}
			researcher := models.Researcher{OrcidID: "0000-0002-1825-0097", Name: "Josiah Carberry"}
			works := sampleWorks()
			report := notifier.Notify(cmd.Context(), researcher, works, []models.Subscriber{{Email: email}})
			fmt.Fprintf(cmd.OutOrStdout(), "sent=%d failed=%d\n", report.Sent, report.Failed)
			if report.Failed > 0 {
				return errors.New("test notification failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Recipient address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
