package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/agent8/internal/store"
	"github.com/rendis/agent8/pkg/schema"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeSettings(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func missingSettings(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.json")
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(envMap(map[string]string{"LLM_API_KEY": "sk-test"}), missingSettings(t))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLMAPIKey)
	assert.Equal(t, "x-ai/grok-2-1212", cfg.LLMModel)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLMBaseURL)
	assert.Equal(t, "https://api.perplexity.ai", cfg.SearchBaseURL)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Equal(t, ":8000", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "agent8.db", filepath.Base(cfg.DBPath))
	assert.Equal(t, 168*time.Hour, cfg.Retention())
	assert.Equal(t, "@hourly", cfg.PruneSchedule)
	assert.Equal(t, 16, cfg.MaxIterations)
	assert.Empty(t, cfg.SearchAPIKey)
	assert.Empty(t, cfg.OTLPEndpoint)
}

func TestLoadConfig_MissingLLMKey(t *testing.T) {
	_, err := loadConfig(envMap(nil), missingSettings(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_API_KEY is required")
}

func TestLoadConfig_SettingsFile(t *testing.T) {
	path := writeSettings(t, map[string]any{
		"llm_api_key":    "from-file",
		"llm_model":      "openai/gpt-4o",
		"listen_addr":    ":9000",
		"run_retention":  "24h",
		"max_iterations": 8,
	})

	cfg, err := loadConfig(envMap(nil), path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.LLMAPIKey)
	assert.Equal(t, "openai/gpt-4o", cfg.LLMModel)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, 24*time.Hour, cfg.Retention())
	assert.Equal(t, 8, cfg.MaxIterations)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeSettings(t, map[string]any{
		"llm_api_key": "from-file",
		"listen_addr": ":9000",
		"log_level":   "debug",
	})

	cfg, err := loadConfig(envMap(map[string]string{
		"LLM_API_KEY":          "from-env",
		"AGENT8_LISTEN_ADDR":   ":7000",
		"ALLOWED_ORIGINS":      "https://a.example, https://b.example,",
		"MAX_ITERATIONS":       "4",
		"AGENT8_RUN_RETENTION": "1h30m",
		"AGENT8_LOG_LEVEL":     "WARN",
	}), path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLMAPIKey)
	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 4, cfg.MaxIterations)
	assert.Equal(t, 90*time.Minute, cfg.Retention())
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfig_EmptyDBPathDisablesStore(t *testing.T) {
	cfg, err := loadConfig(envMap(map[string]string{"LLM_API_KEY": "k", "AGENT8_DB_PATH": ""}), missingSettings(t))
	require.NoError(t, err)
	assert.Empty(t, cfg.DBPath)

	st, err := openStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad max iterations", map[string]string{"MAX_ITERATIONS": "many"}, "MAX_ITERATIONS"},
		{"zero max iterations", map[string]string{"MAX_ITERATIONS": "0"}, "MAX_ITERATIONS"},
		{"bad retention", map[string]string{"AGENT8_RUN_RETENTION": "forever"}, "AGENT8_RUN_RETENTION"},
		{"negative retention", map[string]string{"AGENT8_RUN_RETENTION": "-1h"}, "AGENT8_RUN_RETENTION"},
		{"bad log level", map[string]string{"AGENT8_LOG_LEVEL": "verbose"}, "AGENT8_LOG_LEVEL must be one of"},
		{"bad llm url", map[string]string{"LLM_BASE_URL": "not a url"}, "LLM_BASE_URL must be a URL"},
		{"bad otlp url", map[string]string{"OTEL_EXPORTER_OTLP_ENDPOINT": "collector"}, "OTEL_EXPORTER_OTLP_ENDPOINT must be a URL"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := map[string]string{"LLM_API_KEY": "k"}
			for k, v := range tc.env {
				env[k] = v
			}
			_, err := loadConfig(envMap(env), missingSettings(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadConfig_BadSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"run_retention": 5}`), 0o600))

	_, err := loadConfig(envMap(map[string]string{"LLM_API_KEY": "k"}), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestBuildRegistry(t *testing.T) {
	cfg := defaultConfig()
	reg, err := buildRegistry(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, reg.Count())
}

func TestPrintRuns(t *testing.T) {
	cfg := defaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	require.NoError(t, err)
	defer st.Close()

	for _, id := range []string{"run-a", "run-b"} {
		require.NoError(t, st.CreateRun(ctx, &store.Run{
			ID:        id,
			SessionID: "sess_12345678",
			Prompt:    "p",
			Status:    schema.RunStatusCompleted,
		}))
	}

	var buf bytes.Buffer
	require.NoError(t, printRuns(ctx, st, store.RunFilter{Limit: 20}, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var r store.Run
		require.NoError(t, json.Unmarshal([]byte(line), &r))
		assert.Equal(t, "sess_12345678", r.SessionID)
	}
}
