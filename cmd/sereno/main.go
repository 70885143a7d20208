package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/sereno-app/sereno/internal/companion"
	"github.com/sereno-app/sereno/internal/config"
	"github.com/sereno-app/sereno/internal/httpapi"
	"github.com/sereno-app/sereno/internal/observability"
	"github.com/sereno-app/sereno/internal/store"
	"github.com/sereno-app/sereno/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer st.Close()
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
	}

	var orchestrator *companion.Orchestrator
	generator, provider, err := buildGenerator(cfg, metrics, logger)
	if err != nil {
		// The server still starts so health and metrics stay reachable; chat
		// requests answer with a generic 500 until the credential is fixed.
		logger.Error("upstream client init failed, chat disabled", zap.Error(err))
	} else {
		assembler := companion.NewAssembler(st, cfg.EventLimit, logger)
		orchestrator = companion.NewOrchestrator(generator, assembler, st, companion.Limits{
			HistoryTurns: cfg.HistoryTurnLimit,
			TurnChars:    cfg.TurnCharLimit,
			MemoryBytes:  cfg.MemoryByteLimit,
		}, provider, metrics, logger)
	}

	var comp httpapi.Companion
	if orchestrator != nil {
		comp = orchestrator
	}
	api := httpapi.New(cfg, comp, st, metrics, logger)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = httpServer.Close()
	}
	if orchestrator != nil {
		// Let in-flight memory writes finish before the store closes.
		orchestrator.Drain()
	}

	logger.Info("shutdown complete")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildGenerator picks the real upstream client when a key is configured,
// or the mock generator in debug mode so local development works offline.
func buildGenerator(cfg config.Config, metrics *observability.Metrics, logger *zap.Logger) (upstream.Generator, string, error) {
	if strings.TrimSpace(cfg.UpstreamAPIKey) == "" {
		if cfg.Debug {
			logger.Warn("UPSTREAM_API_KEY not set, using mock upstream")
			return upstream.NewMockGenerator(), "mock", nil
		}
		return nil, "", errors.New("UPSTREAM_API_KEY is not set")
	}

	client, err := upstream.NewClient(upstream.Options{
		BaseURL:         cfg.UpstreamBaseURL,
		APIKey:          cfg.UpstreamAPIKey,
		Models:          cfg.UpstreamModels,
		AttemptTimeout:  cfg.UpstreamTimeout,
		MaxAttempts:     cfg.UpstreamMaxAttempts,
		BackoffBase:     cfg.UpstreamBackoffBase,
		BackoffCap:      cfg.UpstreamBackoffCap,
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
		Logger:          logger,
		Metrics:         metrics,
	})
	if err != nil {
		return nil, "", err
	}
	return client, providerName(cfg.UpstreamBaseURL), nil
}

func providerName(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return "upstream"
	}
	return strings.TrimPrefix(u.Host, "www.")
}
