package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/specforge/specforge/pkg/backup"
	"github.com/specforge/specforge/pkg/cmd"
	"github.com/specforge/specforge/pkg/log"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "specforge-api",
		Usage:                 "Manage specifications, task documents and workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Storage URL: file root, redis:// or postgres://",
				Value:   "./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "backup-cron",
				Usage:   "Cron expression for periodic snapshots (empty disables)",
				Sources: cli.EnvVars("BACKUP_CRON"),
			},
			&cli.DurationFlag{
				Name:    "backup-retention",
				Usage:   "How long snapshots are kept before pruning",
				Value:   7 * 24 * time.Hour,
				Sources: cli.EnvVars("BACKUP_RETENTION"),
			},
			&cli.IntFlag{
				Name:    "backup-min-retained",
				Usage:   "Snapshots always kept regardless of age",
				Value:   3,
				Sources: cli.EnvVars("BACKUP_MIN_RETAINED"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("api")
	logger.InfoContext(ctx, "Initializing SpecForge API")

	if command.Bool("tracing") {
		if _, err := otelhelper.NewTracer(ctx, "specforge-api"); err != nil {
			logger.WarnContext(ctx, "Failed to initialize tracer", "error", err)
		}
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	backups, err := backup.NewManager(persistence, eventBus, logger, backup.Config{
		RetentionWindow: command.Duration("backup-retention"),
		MinRetained:     int(command.Int("backup-min-retained")),
	})
	if err != nil {
		return err
	}

	if expr := command.String("backup-cron"); expr != "" {
		scheduler, err := startBackupScheduler(ctx, expr, backups, logger)
		if err != nil {
			return err
		}

		defer scheduler.Stop()
	}

	api := NewAPI(logger, persistence, eventBus, backups)

	if err := api.Start(int(command.Int("port"))); err != nil {
		logger.ErrorContext(ctx, "Failed to start API server", "error", err)
	}

	return nil
}

// startBackupScheduler snapshots every spec and active workflow on the given
// cadence and prunes expired snapshots afterwards. Timers live here, outside
// the engine.
func startBackupScheduler(ctx context.Context, expr string, backups *backup.Manager, logger *slog.Logger) (*cron.Cron, error) {
	scheduler := cron.New()

	_, err := scheduler.AddFunc(expr, func() {
		snapshotAll(ctx, backups, logger)

		if _, err := backups.Prune(ctx); err != nil {
			logger.ErrorContext(ctx, "Scheduled prune failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}

	scheduler.Start()
	logger.InfoContext(ctx, "Backup scheduler started", "cron", expr)

	return scheduler, nil
}

func snapshotAll(ctx context.Context, backups *backup.Manager, logger *slog.Logger) {
	specs, err := backups.SpecTargets(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Scheduled snapshot failed to list specs", "error", err)

		return
	}

	for _, name := range specs {
		if _, err := backups.Snapshot(ctx, models.SnapshotTargetSpec, name, "scheduled"); err != nil {
			logger.ErrorContext(ctx, "Scheduled spec snapshot failed", "spec", name, "error", err)
		}
	}

	workflows, err := backups.WorkflowTargets(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Scheduled snapshot failed to list workflows", "error", err)

		return
	}

	for _, id := range workflows {
		if _, err := backups.Snapshot(ctx, models.SnapshotTargetWorkflow, id, "scheduled"); err != nil {
			logger.ErrorContext(ctx, "Scheduled workflow snapshot failed", "workflow_id", id, "error", err)
		}
	}
}
