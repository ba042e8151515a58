// Command server starts the visa interview coach HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safarprep/interview-coach/internal/adapter/ai/openrouter"
	"github.com/safarprep/interview-coach/internal/adapter/ai/stub"
	httpserver "github.com/safarprep/interview-coach/internal/adapter/httpserver"
	"github.com/safarprep/interview-coach/internal/adapter/observability"
	"github.com/safarprep/interview-coach/internal/adapter/repo/postgres"
	"github.com/safarprep/interview-coach/internal/app"
	"github.com/safarprep/interview-coach/internal/config"
	"github.com/safarprep/interview-coach/internal/domain"
	"github.com/safarprep/interview-coach/internal/evaluator"
	"github.com/safarprep/interview-coach/internal/interview"
	"github.com/safarprep/interview-coach/internal/questionbank"
	"github.com/safarprep/interview-coach/internal/scoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	sessionRepo := postgres.NewSessionRepo(pool)
	if err := sessionRepo.EnsureSchema(ctx); err != nil {
		slog.Error("schema bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}

	bank, err := questionbank.New(rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		slog.Error("question catalog load failed", slog.Any("error", err))
		os.Exit(1)
	}

	tables, err := scoring.DefaultTables()
	if err != nil {
		slog.Error("scoring tables load failed", slog.Any("error", err))
		os.Exit(1)
	}
	scorer := scoring.NewScorer(tables, "en")

	// AI collaborator: OpenRouter when a key is configured, a canned stub in
	// dev so the AI code path still runs, otherwise rule-based only.
	var aiClient domain.AIClient
	switch {
	case cfg.AIEnabled():
		aiClient = openrouter.New(cfg)
		slog.Info("AI client initialized", slog.String("model", cfg.OpenRouterModel))
	case cfg.IsDev():
		aiClient = stub.New()
		slog.Info("AI stub client initialized (dev mode, no API key)")
	default:
		slog.Info("AI disabled, rule-based scoring only")
	}

	maxRetries, retryInitial, retryMax := cfg.AIRetryPolicy()
	eval := evaluator.New(aiClient, scorer, evaluator.Options{
		MaxRetries:        maxRetries,
		RetryInitial:      retryInitial,
		RetryMaxInterval:  retryMax,
		Cooldown:          cfg.AICooldown,
		PromptTokenBudget: cfg.AIPromptTokenBudget,
	})

	store := interview.NewStore(cfg.SessionIdleTTL)
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go store.RunSweeper(sweepCtx, cfg.SweepInterval)

	svc := interview.NewService(bank, eval, store, sessionRepo, nil, interview.Options{
		PassScore:           cfg.PassScore,
		QuestionsPerSession: cfg.QuestionsPerSession,
		Locale:              "en",
	})

	dbCheck := func(ctx domain.Context) error { return pool.Ping(ctx) }
	srv := httpserver.NewServer(cfg, svc, dbCheck, eval.Available)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	stopSweeper()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
