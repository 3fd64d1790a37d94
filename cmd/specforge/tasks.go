package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/specforge/specforge/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func tasksCommand() *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "Manage a spec's task document",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Replace the task document from a markdown file",
				ArgsUsage: "<spec> <file>",
				Flags:     engineFlags(),
				Action: func(ctx context.Context, command *cli.Command) error {
					name := command.Args().Get(0)
					path := command.Args().Get(1)

					if name == "" || path == "" {
						return errors.New("spec name and task file are required")
					}

					document, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("failed to read task file: %w", err)
					}

					e, cleanup, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer cleanup()

					tasks, err := e.tasks.SetDocument(ctx, name, string(document))
					if err != nil {
						return err
					}

					fmt.Fprintf(os.Stdout, "Loaded %d tasks into %s\n", len(tasks), name)

					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "Show tasks (mode: all, single, next, ready, groups)",
				ArgsUsage: "<spec>",
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Which view of the document to show",
						Value: "all",
					},
					&cli.StringFlag{
						Name:  "task-id",
						Usage: "Task id for mode=single",
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

					resp, err := e.tasks.Query(ctx, services.TaskQueryRequest{
						SpecName: name,
						Mode:     services.TaskQueryMode(command.String("mode")),
						TaskID:   command.String("task-id"),
					})
					if err != nil {
						return err
					}

					return printJSON(resp)
				},
			},
			{
				Name:      "export",
				Usage:     "Print the task document as markdown",
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

					document, err := e.tasks.Document(ctx, name)
					if err != nil {
						return err
					}

					fmt.Fprint(os.Stdout, document)

					return nil
				},
			},
			{
				Name:      "complete",
				Usage:     "Mark a task complete",
				ArgsUsage: "<spec> <task-id>",
				Flags:     engineFlags(),
				Action: func(ctx context.Context, command *cli.Command) error {
					name := command.Args().Get(0)
					taskID := command.Args().Get(1)

					if name == "" || taskID == "" {
						return errors.New("spec name and task id are required")
					}

					e, cleanup, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer cleanup()

					result, err := e.tasks.Complete(ctx, name, taskID)
					if err != nil {
						return err
					}

					if result.AlreadyComplete {
						fmt.Fprintf(os.Stdout, "Task %s was already complete (%d/%d)\n",
							taskID, result.Completed, result.Total)
					} else {
						fmt.Fprintf(os.Stdout, "Task %s complete (%d/%d)\n",
							taskID, result.Completed, result.Total)
					}

					return nil
				},
			},
		},
	}
}
