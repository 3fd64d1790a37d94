package main

import (
	"context"
	"errors"

	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func specCommand() *cli.Command {
	return &cli.Command{
		Name:  "spec",
		Usage: "Manage specification lifecycle",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Register a specification in the backlog",
				ArgsUsage: "<name>",
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "What the spec is about",
					},
					&cli.StringFlag{
						Name:  "stage",
						Usage: "Initial stage (backlog or scope)",
					},
				),
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

					spec, err := e.specs.Create(ctx, services.CreateSpecRequest{
						Name:        name,
						Description: command.String("description"),
						Stage:       models.SpecStage(command.String("stage")),
					})
					if err != nil {
						return err
					}

					return printJSON(spec)
				},
			},
			{
				Name:  "list",
				Usage: "List all specifications",
				Flags: engineFlags(),
				Action: func(ctx context.Context, command *cli.Command) error {
					e, cleanup, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer cleanup()

					specs, err := e.specs.List(ctx)
					if err != nil {
						return err
					}

					return printJSON(specs)
				},
			},
			{
				Name:      "show",
				Usage:     "Show one specification",
				ArgsUsage: "<name>",
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

					spec, err := e.specs.Get(ctx, name)
					if err != nil {
						return err
					}

					return printJSON(spec)
				},
			},
			{
				Name:      "status",
				Usage:     "Show a spec's stage and completion summary",
				ArgsUsage: "<name>",
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

					status, err := e.specs.Status(ctx, name)
					if err != nil {
						return err
					}

					return printJSON(status)
				},
			},
			{
				Name:      "promote",
				Usage:     "Advance a spec one stage, or move it to --stage",
				ArgsUsage: "<name>",
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:  "stage",
						Usage: "Target stage (scope, completed, sandbox, archived)",
					},
					&cli.StringFlag{
						Name:  "reason",
						Usage: "Why the spec is moving",
					},
				),
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

					reason := command.String("reason")

					var spec *models.Spec
					if stage := command.String("stage"); stage != "" {
						spec, err = e.specs.Transition(ctx, name, services.TransitionSpecRequest{
							Stage:  models.SpecStage(stage),
							Reason: reason,
						})
					} else {
						spec, err = e.specs.Promote(ctx, name, reason)
					}

					if err != nil {
						return err
					}

					return printJSON(spec)
				},
			},
			{
				Name:      "archive",
				Usage:     "Archive a spec with a reason",
				ArgsUsage: "<name>",
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:     "reason",
						Usage:    "Why the spec is being archived",
						Required: true,
					},
				),
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

					spec, err := e.specs.Transition(ctx, name, services.TransitionSpecRequest{
						Stage:  models.StageArchived,
						Reason: command.String("reason"),
					})
					if err != nil {
						return err
					}

					return printJSON(spec)
				},
			},
		},
	}
}
