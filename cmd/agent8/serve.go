package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/rendis/agent8/internal/logging"
	"github.com/rendis/agent8/internal/orchestrator"
	"github.com/rendis/agent8/internal/scheduler"
	"github.com/rendis/agent8/internal/server"
	"github.com/rendis/agent8/internal/session"
	"github.com/rendis/agent8/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP and websocket server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides AGENT8_LISTEN_ADDR)",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := loadConfig(lookupEnv, settingsPath())
			if err != nil {
				return err
			}
			if addr := command.String("addr"); addr != "" {
				cfg.ListenAddr = addr
			}
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg Config) error {
	logger := logging.Setup(cfg.LogLevel)

	shutdownTracing, err := telemetry.Setup(ctx, "agent8", version, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("serve: tracing shutdown", "error", err)
		}
	}()

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}

	orchCfg := orchestrator.Config{
		LLM:           buildLLM(cfg, logger),
		Tools:         registry,
		Logger:        logger,
		MaxIterations: cfg.MaxIterations,
		Model:         cfg.LLMModel,
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		orchCfg.Recorder = st

		sched, err := scheduler.NewScheduler(st, scheduler.Config{
			Schedule:  cfg.PruneSchedule,
			Retention: cfg.Retention(),
		}, logger)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	} else {
		logger.Info("serve: run store disabled")
	}

	sessions := session.NewManager(session.ManagerConfig{
		Runner: orchestrator.New(orchCfg),
		Logger: logger,
	})
	srv := server.New(server.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		Model:          cfg.LLMModel,
		APIs: server.APIStatus{
			LLM:    cfg.LLMAPIKey != "",
			Search: cfg.SearchAPIKey != "",
			Google: cfg.GoogleAPIKey != "",
		},
	}, sessions, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.ListenAddr) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("serve: shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("serve: stopped")
	return nil
}
