package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the companion chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	// Debug surfaces upstream error detail in 503 responses and allows the
	// mock upstream when no API key is configured. Never enable in production.
	Debug bool

	UpstreamAPIKey      string
	UpstreamBaseURL     string
	UpstreamModels      []string
	UpstreamTimeout     time.Duration
	UpstreamMaxAttempts int
	UpstreamBackoffBase time.Duration
	UpstreamBackoffCap  time.Duration
	Temperature         float64
	MaxOutputTokens     int

	HistoryTurnLimit int
	TurnCharLimit    int
	MemoryByteLimit  int
	EventLimit       int

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "sereno"),
		UpstreamAPIKey:   envTrimmed("UPSTREAM_API_KEY"),
		UpstreamBaseURL:  envOrDefault("UPSTREAM_BASE_URL", "https://openrouter.ai/api/v1/chat/completions"),
		UpstreamModels:   splitModels(envOrDefault("UPSTREAM_MODELS", "google/gemini-flash-1.5,meta-llama/llama-3.1-8b-instruct")),
		DatabaseURL:      envTrimmed("DATABASE_URL"),

		ShutdownTimeout:     15 * time.Second,
		UpstreamTimeout:     20 * time.Second,
		UpstreamMaxAttempts: 3,
		UpstreamBackoffBase: 500 * time.Millisecond,
		UpstreamBackoffCap:  8 * time.Second,
		Temperature:         0.7,
		MaxOutputTokens:     1024,
		HistoryTurnLimit:    12,
		TurnCharLimit:       600,
		MemoryByteLimit:     4000,
		EventLimit:          12,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.UpstreamTimeout, err = durationFromEnv("UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.UpstreamBackoffBase, err = durationFromEnv("UPSTREAM_BACKOFF_BASE", cfg.UpstreamBackoffBase)
	if err != nil {
		return Config{}, err
	}
	cfg.UpstreamBackoffCap, err = durationFromEnv("UPSTREAM_BACKOFF_CAP", cfg.UpstreamBackoffCap)
	if err != nil {
		return Config{}, err
	}
	cfg.UpstreamMaxAttempts, err = intFromEnv("UPSTREAM_MAX_ATTEMPTS", cfg.UpstreamMaxAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxOutputTokens, err = intFromEnv("UPSTREAM_MAX_OUTPUT_TOKENS", cfg.MaxOutputTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.Temperature, err = floatFromEnv("UPSTREAM_TEMPERATURE", cfg.Temperature)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryTurnLimit, err = intFromEnv("CHAT_HISTORY_TURN_LIMIT", cfg.HistoryTurnLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.TurnCharLimit, err = intFromEnv("CHAT_TURN_CHAR_LIMIT", cfg.TurnCharLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.MemoryByteLimit, err = intFromEnv("CHAT_MEMORY_BYTE_LIMIT", cfg.MemoryByteLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.EventLimit, err = intFromEnv("CHAT_EVENT_LIMIT", cfg.EventLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.Debug, err = boolFromEnv("APP_DEBUG", cfg.Debug)
	if err != nil {
		return Config{}, err
	}

	if len(cfg.UpstreamModels) == 0 {
		return Config{}, fmt.Errorf("UPSTREAM_MODELS must name at least one model")
	}
	if cfg.UpstreamMaxAttempts <= 0 {
		return Config{}, fmt.Errorf("UPSTREAM_MAX_ATTEMPTS must be positive")
	}
	if cfg.UpstreamTimeout < time.Second {
		return Config{}, fmt.Errorf("UPSTREAM_TIMEOUT must be at least 1s")
	}
	if cfg.HistoryTurnLimit <= 0 {
		return Config{}, fmt.Errorf("CHAT_HISTORY_TURN_LIMIT must be positive")
	}
	if cfg.TurnCharLimit <= 0 {
		return Config{}, fmt.Errorf("CHAT_TURN_CHAR_LIMIT must be positive")
	}
	if cfg.MemoryByteLimit <= 0 {
		return Config{}, fmt.Errorf("CHAT_MEMORY_BYTE_LIMIT must be positive")
	}
	if cfg.EventLimit <= 0 {
		return Config{}, fmt.Errorf("CHAT_EVENT_LIMIT must be positive")
	}

	return cfg, nil
}

func splitModels(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
