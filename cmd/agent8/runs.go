package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/rendis/agent8/internal/store"
	"github.com/rendis/agent8/pkg/schema"
)

func newRunsCommand() *cli.Command {
	return &cli.Command{
		Name:    "runs",
		Aliases: []string{"ls"},
		Usage:   "List recent orchestrator runs as JSON lines",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to print",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "Only runs of this session id",
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only runs with this status (running, completed, failed, cancelled)",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := loadOfflineConfig()
			if err != nil {
				return err
			}
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			if st == nil {
				return errors.New("run store is disabled (AGENT8_DB_PATH is empty)")
			}
			defer st.Close()

			filter := store.RunFilter{
				SessionID: command.String("session"),
				Limit:     int(command.Int("limit")),
			}
			if s := command.String("status"); s != "" {
				status := schema.RunStatus(s)
				filter.Status = &status
			}
			return printRuns(ctx, st, filter, os.Stdout)
		},
	}
}

func printRuns(ctx context.Context, st store.Store, filter store.RunFilter, w io.Writer) error {
	runs, err := st.ListRuns(ctx, filter)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	enc := json.NewEncoder(w)
	for _, r := range runs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
