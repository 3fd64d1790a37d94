package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/specforge/specforge/pkg/backup"
	"github.com/specforge/specforge/pkg/cmd"
	"github.com/specforge/specforge/pkg/lifecycle"
	"github.com/specforge/specforge/pkg/log"
	"github.com/specforge/specforge/pkg/persistence"
	"github.com/specforge/specforge/pkg/services"
	"github.com/specforge/specforge/pkg/statestore"
	"github.com/specforge/specforge/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

// engine bundles the services a CLI action works with.
type engine struct {
	persistence persistence.Persistence
	specs       *services.Specs
	tasks       *services.Tasks
	workflows   *services.Workflows
	backups     *services.Backups
}

// engineFlags are shared by every subcommand.
func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Storage URL: file root, redis:// or postgres://",
			Value:   "./data",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "warn",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

// setup builds the engine for one CLI invocation. The CLI runs without an
// event bus; publication is an API server concern.
func setup(ctx context.Context, command *cli.Command) (*engine, func(), error) {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("cli")

	p, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := p.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}

	backups, err := backup.NewManager(p, nil, logger, backup.DefaultConfig())
	if err != nil {
		cleanup()

		return nil, nil, err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	return &engine{
		persistence: p,
		specs:       services.NewSpecs(lifecycle.NewManager(p, nil, logger, lifecycle.WithRestoreGate(backups.Gate())), validate),
		tasks:       services.NewTasks(p, statestore.New(p, logger, statestore.WithRestoreGate(backups.Gate())), nil, logger, validate),
		workflows:   services.NewWorkflows(workflow.NewManager(p, backups, nil, logger), validate),
		backups:     services.NewBackups(backups, validate),
	}, cleanup, nil
}

// printJSON renders a result to stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}

	fmt.Fprintln(os.Stdout, string(out))

	return nil
}
