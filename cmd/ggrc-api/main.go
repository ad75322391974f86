package main

import (
	"context"
	"os"

	"github.com/Happy-Ferret/ggrc-core/pkg/cmd"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	flags := append([]cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
	}, cmd.CommonFlags()...)

	command := &cli.Command{
		Name:                  "ggrc-api",
		Usage:                 "Serve workflows and their cycle lifecycle over HTTP",
		EnableShellCompletion: true,
		Flags:                 flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			rt, err := cmd.NewRuntime(ctx, command, "ggrc-api")
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			rt.Logger.InfoContext(ctx, "Initializing GGRC API")

			return NewAPI(rt).Start(ctx, command.Int("port"))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
