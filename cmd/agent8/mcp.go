package main

import (
	"context"
	"io"

	cli "github.com/urfave/cli/v3"

	"github.com/rendis/agent8/internal/logging"
	"github.com/rendis/agent8/pkg/mcp"
)

func newMCPCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the workflow tools over MCP on stdio",
		Action: func(ctx context.Context, _ *cli.Command) error {
			cfg, err := loadOfflineConfig()
			if err != nil {
				return err
			}
			// stdout carries the protocol; logs go to stderr.
			logger := logging.Setup(cfg.LogLevel)

			registry, err := buildRegistry(cfg, logger)
			if err != nil {
				return err
			}
			srv := mcp.NewServer(mcp.ServerDeps{Registry: registry, Version: version, Logger: logger})
			logger.Info("mcp: serving on stdio", "tools", registry.Count())

			if err := srv.Serve(ctx); err != nil && ctx.Err() == nil && err != io.EOF {
				return err
			}
			return nil
		},
	}
}

// loadOfflineConfig loads the configuration for commands that never call the
// model, so LLM_API_KEY is not required.
func loadOfflineConfig() (Config, error) {
	return loadConfig(func(key string) (string, bool) {
		if key == "LLM_API_KEY" {
			if v, ok := lookupEnv(key); ok && v != "" {
				return v, true
			}
			return "unused", true
		}
		return lookupEnv(key)
	}, settingsPath())
}
