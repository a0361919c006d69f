package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rendis/agent8/internal/expressions"
	"github.com/rendis/agent8/internal/llm"
	"github.com/rendis/agent8/internal/search"
	"github.com/rendis/agent8/internal/store"
	"github.com/rendis/agent8/internal/tools"
	"github.com/rendis/agent8/internal/validation"
)

// buildRegistry wires the search client and node linter into the builtin tools.
func buildRegistry(cfg Config, logger *slog.Logger) (*tools.Registry, error) {
	linter, err := expressions.NewNodeLinter(expressions.DefaultNodeRules)
	if err != nil {
		return nil, fmt.Errorf("compile node rules: %w", err)
	}
	searcher := search.New(search.Config{
		APIKey:  cfg.SearchAPIKey,
		BaseURL: cfg.SearchBaseURL,
	}, logger)

	return tools.NewBuiltinRegistry(validation.NewJSONSchemaValidator(), tools.Deps{
		Searcher: searcher,
		Linter:   linter,
		Logger:   logger,
	})
}

func buildLLM(cfg Config, logger *slog.Logger) *llm.ChatClient {
	return llm.NewChatClient(llm.Config{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		Retry:   llm.DefaultRetryPolicy(),
	}, logger)
}

// openStore opens and migrates the run store. It returns nil when the store
// is disabled.
func openStore(ctx context.Context, cfg Config) (store.Store, error) {
	if cfg.DBPath == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewLibSQLStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return st, nil
}
