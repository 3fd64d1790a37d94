package main

import (
	"context"
	"errors"

	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func workflowCommand() *cli.Command {
	return &cli.Command{
		Name:  "workflow",
		Usage: "Drive the development phase sequence",
		Commands: []*cli.Command{
			{
				Name:      "start",
				Usage:     "Start a workflow for a spec",
				ArgsUsage: "<spec>",
				Flags:     engineFlags(),
				Action: func(ctx context.Context, command *cli.Command) error {
					name := command.Args().First()
					if name == "" {
						return errors.New("spec name is required")
					}

					e, cleanup, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer cleanup()

					state, err := e.workflows.Start(ctx, services.StartWorkflowRequest{SpecName: name})
					if err != nil {
						return err
					}

					return printJSON(state)
				},
			},
			{
				Name:  "list",
				Usage: "List active workflows",
				Flags: engineFlags(),
				Action: func(ctx context.Context, command *cli.Command) error {
					e, cleanup, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer cleanup()

					workflows, err := e.workflows.List(ctx)
					if err != nil {
						return err
					}

					return printJSON(workflows)
				},
			},
			{
				Name:      "status",
				Usage:     "Show a workflow's state",
				ArgsUsage: "<workflow-id>",
				Flags:     engineFlags(),
				Action: func(ctx context.Context, command *cli.Command) error {
					return withWorkflow(ctx, command, func(e *engine, id string) (any, error) {
						return e.workflows.StatusView(ctx, id)
					})
				},
			},
			{
				Name:      "complete-phase",
				Usage:     "Record the current phase as finished",
				ArgsUsage: "<workflow-id> <phase>",
				Flags:     engineFlags(),
				Action: func(ctx context.Context, command *cli.Command) error {
					id := command.Args().Get(0)
					phase := command.Args().Get(1)

					if id == "" || phase == "" {
						return errors.New("workflow id and phase are required")
					}

					e, cleanup, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer cleanup()

					state, err := e.workflows.CompletePhase(ctx, id, services.CompletePhaseRequest{
						Phase: models.WorkflowPhase(phase),
					})
					if err != nil {
						return err
					}

					return printJSON(state)
				},
			},
			{
				Name:      "pause",
				Usage:     "Pause a workflow",
				ArgsUsage: "<workflow-id>",
				Flags:     engineFlags(),
				Action: func(ctx context.Context, command *cli.Command) error {
					return withWorkflow(ctx, command, func(e *engine, id string) (any, error) {
						return e.workflows.Pause(ctx, id)
					})
				},
			},
			{
				Name:      "continue",
				Usage:     "Resume a paused or failed workflow",
				ArgsUsage: "<workflow-id>",
				Flags:     engineFlags(),
				Action: func(ctx context.Context, command *cli.Command) error {
					return withWorkflow(ctx, command, func(e *engine, id string) (any, error) {
						return e.workflows.Continue(ctx, id)
					})
				},
			},
			{
				Name:      "reset",
				Usage:     "Archive a workflow and start fresh",
				ArgsUsage: "<workflow-id>",
				Flags:     engineFlags(),
				Action: func(ctx context.Context, command *cli.Command) error {
					return withWorkflow(ctx, command, func(e *engine, id string) (any, error) {
						return e.workflows.Reset(ctx, id)
					})
				},
			},
			{
				Name:      "fail",
				Usage:     "Record a phase execution failure",
				ArgsUsage: "<workflow-id>",
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:     "reason",
						Usage:    "What went wrong",
						Required: true,
					},
				),
				Action: func(ctx context.Context, command *cli.Command) error {
					id := command.Args().First()
					if id == "" {
						return errors.New("workflow id is required")
					}

					e, cleanup, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer cleanup()

					state, err := e.workflows.Fail(ctx, id, services.FailWorkflowRequest{
						Reason: command.String("reason"),
					})
					if err != nil {
						return err
					}

					return printJSON(state)
				},
			},
		},
	}
}

// withWorkflow handles the id-argument boilerplate shared by the single-id
// workflow subcommands.
func withWorkflow(ctx context.Context, command *cli.Command, fn func(e *engine, id string) (any, error)) error {
	id := command.Args().First()
	if id == "" {
		return errors.New("workflow id is required")
	}

	e, cleanup, err := setup(ctx, command)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := fn(e, id)
	if err != nil {
		return err
	}

	return printJSON(result)
}
