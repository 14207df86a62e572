// Package main is the entrypoint for the PartScout API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/kiranshivaraju/partscout/internal/ai"
	"github.com/kiranshivaraju/partscout/internal/api"
	"github.com/kiranshivaraju/partscout/internal/api/handler"
	mw "github.com/kiranshivaraju/partscout/internal/api/middleware"
	"github.com/kiranshivaraju/partscout/internal/cache"
	"github.com/kiranshivaraju/partscout/internal/config"
	"github.com/kiranshivaraju/partscout/internal/enrich"
	"github.com/kiranshivaraju/partscout/internal/metrics"
	"github.com/kiranshivaraju/partscout/internal/store"
)

const shutdownTimeout = 30 * time.Second

var logLevel = new(slog.LevelVar)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logLevel.Set(parseLevel(cfg.Server.LogLevel))
	slog.Info("config loaded",
		"ai_provider", cfg.AI.Provider,
		"store_backend", cfg.Store.Backend,
		"env", cfg.Server.Env,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			slog.Error("failed to release resources", "error", err)
		}
	}()

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("server stopped gracefully")
	return nil
}

// app is the wired server and the resources it owns.
type app struct {
	srv     *http.Server
	svc     *ai.AnalysisService
	closers []io.Closer
}

// newApp connects every dependency named by cfg and builds the HTTP server.
// On error, anything already opened is closed.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.close())
		}
	}()

	// 2. Job store
	st, err := store.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	a.closers = append(a.closers, st)

	// 3. Optional Redis cache
	var (
		statusCache cache.Cache = cache.Nop{}
		cacheHealth handler.Pinger
	)
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("create redis cache: %w", err)
		}
		a.closers = append(a.closers, redisCache)
		if err := redisCache.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		statusCache, cacheHealth = redisCache, redisCache
		slog.Info("redis connected")
	} else {
		slog.Info("redis not configured, status cache and rate limiting disabled")
	}

	// 4. AI provider
	provider, err := ai.NewProvider(ctx, cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("create AI provider: %w", err)
	}
	if c, ok := provider.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	slog.Info("AI provider initialized", "provider", provider.Name())

	// 5. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pm := metrics.NewPipeline(reg)

	// 6. Pipeline
	enricher := enrich.New(
		enrich.NewHTTPFetcher(cfg.Enrichment.Timeout, cfg.Enrichment.UserAgent),
		enrich.WithConcurrency(cfg.Enrichment.Concurrency),
		enrich.WithMetrics(pm),
	)
	a.svc = ai.NewAnalysisService(provider, st, statusCache, enricher,
		ai.WithPipelineConfig(cfg.Pipeline),
		ai.WithInferenceTimeout(cfg.AI.InferenceTimeout),
		ai.WithMetrics(pm),
	)

	// 7. Router
	jobs := handler.NewJobs(a.svc, st, cfg.Server.MaxUploadBytes)
	deps := api.Dependencies{
		Operator:         mw.NewOperatorAuth(cfg.Operator.TokenHash),
		HealthHandler:    handler.Health(st, cacheHealth, provider.Name()),
		MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		AnalyzeHandler:   jobs.Analyze,
		ListJobsHandler:  jobs.List,
		JobStatsHandler:  jobs.Stats,
		GetJobHandler:    jobs.Get,
		JobStatusHandler: jobs.Status,
		DeleteJobHandler: jobs.Delete,
	}
	if cfg.Redis.URL != "" {
		deps.RateLimit = mw.NewRateLimit(statusCache, cfg.Server.RateLimitRPM)
	}

	// 8. HTTP server
	a.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a, nil
}

// shutdown stops accepting requests, then waits for in-flight jobs.
func (a *app) shutdown(ctx context.Context) error {
	var err error
	if serr := a.srv.Shutdown(ctx); serr != nil {
		err = multierr.Append(err, fmt.Errorf("server shutdown: %w", serr))
	}
	if jerr := a.svc.Shutdown(ctx); jerr != nil {
		err = multierr.Append(err, jerr)
	}
	return err
}

// close releases resources in reverse order of acquisition.
func (a *app) close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i].Close())
	}
	a.closers = nil
	return err
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
