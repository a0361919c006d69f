package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "agent8",
		EnableShellCompletion: true,
		Usage:                 "LLM tool-calling backend for the agent8 Cardano workflow builder",
		Commands: []*cli.Command{
			newServeCommand(),
			newMCPCommand(),
			newRunsCommand(),
			{
				Name:  "version",
				Usage: "Print the build version",
				Action: func(context.Context, *cli.Command) error {
					printVersion()
					return nil
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "agent8:", err)
		stop()
		os.Exit(1)
	}
}
