package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all agent8 server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	LLMAPIKey      string   `json:"llm_api_key" env:"LLM_API_KEY" validate:"required"`
	LLMModel       string   `json:"llm_model" env:"LLM_MODEL" validate:"required"`
	LLMBaseURL     string   `json:"llm_base_url" env:"LLM_BASE_URL" validate:"required,url"`
	SearchAPIKey   string   `json:"search_api_key" env:"SEARCH_API_KEY"`
	SearchBaseURL  string   `json:"search_base_url" env:"SEARCH_BASE_URL" validate:"required,url"`
	GoogleAPIKey   string   `json:"google_api_key" env:"GOOGLE_API_KEY"`
	AllowedOrigins []string `json:"allowed_origins" env:"ALLOWED_ORIGINS" validate:"dive,required"`
	ListenAddr     string   `json:"listen_addr" env:"AGENT8_LISTEN_ADDR" validate:"required"`
	LogLevel       string   `json:"log_level" env:"AGENT8_LOG_LEVEL" validate:"oneof=debug info warn error"`
	DBPath         string   `json:"db_path" env:"AGENT8_DB_PATH"`
	RunRetention   Duration `json:"run_retention" env:"AGENT8_RUN_RETENTION" validate:"gt=0"`
	PruneSchedule  string   `json:"prune_schedule" env:"AGENT8_PRUNE_SCHEDULE" validate:"required"`
	MaxIterations  int      `json:"max_iterations" env:"MAX_ITERATIONS" validate:"gte=1,lte=256"`
	OTLPEndpoint   string   `json:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" validate:"omitempty,url"`
}

// Duration is a time.Duration read from strings like "168h" in settings.json.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"168h\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func defaultConfig() Config {
	return Config{
		LLMModel:       "x-ai/grok-2-1212",
		LLMBaseURL:     "https://openrouter.ai/api/v1",
		SearchBaseURL:  "https://api.perplexity.ai",
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		ListenAddr:     ":8000",
		LogLevel:       "info",
		DBPath:         filepath.Join(agent8Dir(), "agent8.db"),
		RunRetention:   Duration(168 * time.Hour),
		PruneSchedule:  "@hourly",
		MaxIterations:  16,
	}
}

func agent8Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agent8"
	}
	return filepath.Join(home, ".agent8")
}

func settingsPath() string {
	return filepath.Join(agent8Dir(), "settings.json")
}

// loadConfig layers defaults, the settings file and the environment, then
// validates the result.
func loadConfig(lookupEnv func(string) (string, bool), settings string) (Config, error) {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settings); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", settings, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", settings, err)
	}

	// Layer 3: env vars override.
	if err := applyEnv(&cfg, lookupEnv); err != nil {
		return Config{}, err
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookupEnv func(string) (string, bool)) error {
	getenv := func(key string) string {
		v, _ := lookupEnv(key)
		return v
	}

	strs := map[string]*string{
		"LLM_API_KEY":                 &cfg.LLMAPIKey,
		"LLM_MODEL":                   &cfg.LLMModel,
		"LLM_BASE_URL":                &cfg.LLMBaseURL,
		"SEARCH_API_KEY":              &cfg.SearchAPIKey,
		"SEARCH_BASE_URL":             &cfg.SearchBaseURL,
		"GOOGLE_API_KEY":              &cfg.GoogleAPIKey,
		"AGENT8_LISTEN_ADDR":          &cfg.ListenAddr,
		"AGENT8_LOG_LEVEL":            &cfg.LogLevel,
		"AGENT8_PRUNE_SCHEDULE":       &cfg.PruneSchedule,
		"OTEL_EXPORTER_OTLP_ENDPOINT": &cfg.OTLPEndpoint,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	// AGENT8_DB_PATH may be set to an empty value to disable the store.
	if v, ok := lookupEnv("AGENT8_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	if v := getenv("AGENT8_RUN_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AGENT8_RUN_RETENTION: %w", err)
		}
		cfg.RunRetention = Duration(d)
	}
	if v := getenv("MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_ITERATIONS: %w", err)
		}
		cfg.MaxIterations = n
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("env")
	})
	return v
}

func validateConfig(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "url":
		return fe.Field() + " must be a URL"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
	}
}

// Retention returns the run retention window.
func (c Config) Retention() time.Duration { return time.Duration(c.RunRetention) }

func lookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}
