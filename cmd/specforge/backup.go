package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func backupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Snapshot and restore engine state",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Snapshot a spec or workflow",
				ArgsUsage: "<target-id>",
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:  "target",
						Usage: "What to snapshot (spec, workflow)",
						Value: "spec",
					},
					&cli.StringFlag{
						Name:  "reason",
						Usage: "Why the snapshot is taken",
					},
				),
				Action: func(ctx context.Context, command *cli.Command) error {
					targetID := command.Args().First()
					if targetID == "" {
						return errors.New("target id is required")
					}

					e, cleanup, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer cleanup()

					snapshot, err := e.backups.Create(ctx, services.CreateBackupRequest{
						Target:   models.SnapshotTarget(command.String("target")),
						TargetID: targetID,
						Reason:   command.String("reason"),
					})
					if err != nil {
						return err
					}

					return printJSON(snapshot)
				},
			},
			{
				Name:  "list",
				Usage: "List snapshots, newest first",
				Flags: engineFlags(),
				Action: func(ctx context.Context, command *cli.Command) error {
					e, cleanup, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer cleanup()

					snapshots, err := e.backups.List(ctx)
					if err != nil {
						return err
					}

					return printJSON(snapshots)
				},
			},
			{
				Name:      "restore",
				Usage:     "Restore live state from a snapshot",
				ArgsUsage: "<snapshot-id>",
				Flags:     engineFlags(),
				Action: func(ctx context.Context, command *cli.Command) error {
					snapshotID := command.Args().First()
					if snapshotID == "" {
						return errors.New("snapshot id is required")
					}

					e, cleanup, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer cleanup()

					preRestore, err := e.backups.Restore(ctx, snapshotID)
					if err != nil {
						return err
					}

					fmt.Fprintf(os.Stdout, "Restored %s (pre-restore snapshot: %s)\n",
						snapshotID, preRestore.ID)

					return nil
				},
			},
			{
				Name:  "prune",
				Usage: "Remove snapshots past the retention window",
				Flags: engineFlags(),
				Action: func(ctx context.Context, command *cli.Command) error {
					e, cleanup, err := setup(ctx, command)
					if err != nil {
						return err
					}
					defer cleanup()

					pruned, err := e.backups.Prune(ctx)
					if err != nil {
						return err
					}

					fmt.Fprintf(os.Stdout, "Pruned %d snapshots\n", len(pruned))

					return nil
				},
			},
		},
	}
}
