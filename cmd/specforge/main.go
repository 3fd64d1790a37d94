// Package main provides the SpecForge command line interface.
package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "specforge",
		Usage:                 "Manage specifications, task documents and workflows",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			specCommand(),
			tasksCommand(),
			workflowCommand(),
			backupCommand(),
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
