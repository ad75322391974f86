// Package main provides ggrc-cycles, the command line for starting, ending
// and scheduling workflow cycles.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Happy-Ferret/ggrc-core/pkg/cmd"
	cli "github.com/urfave/cli/v3"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "ggrc-cycles",
		Usage:                 "Start, end and schedule workflow cycles",
		EnableShellCompletion: true,
		Flags:                 cmd.CommonFlags(),
		Commands: []*cli.Command{
			{
				Name:      "start",
				Usage:     "Start a new cycle of a workflow after confirmation",
				ArgsUsage: "<workflow-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Skip the confirmation prompt",
					},
				},
				Action: StartCycle,
			},
			{
				Name:      "end",
				Usage:     "Finish every current cycle of a workflow",
				ArgsUsage: "<workflow-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "trigger",
						Usage: "Busy key of the control asking to end the cycles",
					},
				},
				Action: EndCycle,
			},
			{
				Name:      "show",
				Aliases:   []string{"s"},
				Usage:     "Show a workflow and its current cycles",
				ArgsUsage: "<workflow-id>",
				Action:    ShowWorkflow,
			},
			{
				Name:      "import",
				Usage:     "Create workflows from a YAML document",
				ArgsUsage: "<file>",
				Action:    ImportWorkflows,
			},
			{
				Name:      "export",
				Usage:     "Write workflows as YAML documents",
				ArgsUsage: "[workflow-id...]",
				Action:    ExportWorkflows,
			},
			{
				Name:  "schedule",
				Usage: "Start cycles of recurring workflows when their frequency fires",
				Action: func(ctx context.Context, command *cli.Command) error {
					return RunScheduler(ctx, command)
				},
			},
			{
				Name:  "events",
				Usage: "Log cycle lifecycle events from the event bus",
				Action: func(ctx context.Context, command *cli.Command) error {
					return WatchEvents(ctx, command)
				},
			},
		},
	}
}

func main() {
	err := newCommand().Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
