package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/careloop/careloop/internal/agent"
	"github.com/careloop/careloop/internal/api/groq"
	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/demoapi"
	"github.com/careloop/careloop/internal/metrics"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/pipeline"
	"github.com/careloop/careloop/internal/progress"
	"github.com/careloop/careloop/internal/review"
	"github.com/careloop/careloop/internal/server"
	"github.com/careloop/careloop/internal/session"
	"github.com/careloop/careloop/internal/telemetry"
	"github.com/careloop/careloop/internal/tokens"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdown, err := telemetry.InitTracer("careloop", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	if cfg.Groq.APIKey == "" {
		logger.Warn("no Groq API key configured; set CARELOOP_GROQ__API_KEY")
	}

	registry := metrics.NewRegistry()

	// Model service client with retry/backoff
	var apiOpts []groq.ClientOption
	if cfg.Groq.BaseURL != "" {
		apiOpts = append(apiOpts, groq.WithBaseURL(cfg.Groq.BaseURL))
	}
	modelClient := model.New(groq.NewClient(cfg.Groq.APIKey, apiOpts...),
		model.WithMaxRetries(cfg.Groq.MaxRetries),
		model.WithBaseDelay(cfg.Groq.RetryDelay()),
		model.WithRequestTimeout(cfg.Groq.RequestTimeout()),
		model.WithRecorder(registry),
		model.WithLogger(logger),
	)

	// Stage agents
	identity := agent.Identity{
		Company:    cfg.Company.Name,
		Domain:     cfg.Company.Domain,
		BrandVoice: cfg.Company.BrandVoice,
	}
	safety := agent.NewSafetyAgent(modelClient, cfg.Models.Guard, cfg.Pipeline.MaxTokensGuard, logger)
	responder := agent.NewResponseAgent(modelClient, cfg.Models.Response, cfg.Pipeline.MaxTokensResponse, identity, logger)
	tone := agent.NewToneAgent(modelClient, cfg.Models.Tone, cfg.Pipeline.MaxTokensTone, identity, logger)
	rewriter := agent.NewRewriteAgent(modelClient, cfg.Models.Rewrite, cfg.Pipeline.MaxTokensRewrite, identity, logger)

	// Orchestration context
	tracker := progress.NewTracker()
	reviews := review.NewExchange(logger)
	orchestrator := pipeline.New(safety, responder, tone, rewriter, reviews, pipeline.Options{
		ReviewTimeout: cfg.Pipeline.HumanReviewTimeout(),
		Tokens:        tokens.NewEstimator(),
		Recorder:      registry,
		Logger:        logger,
	})
	sessions := session.NewController(orchestrator, tracker, reviews, session.DefaultScenarios, logger)

	// HTTP surface
	srv := server.New(cfg.Server.Port, logger)

	probe := func(ctx context.Context) bool {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return modelClient.Healthy(probeCtx, cfg.Models.Guard)
	}
	agentStats := func() map[string]metrics.LatencyStats {
		return map[string]metrics.LatencyStats{
			"guard":    safety.Stats(),
			"response": responder.Stats(),
			"tone":     tone.Stats(),
			"rewrite":  rewriter.Stats(),
		}
	}

	handler := demoapi.NewHandler(sessions, tracker, reviews, probe, agentStats, logger)
	handler.Routes(srv.Router)
	srv.Router.Handle("/metrics", registry.Handler())

	logger.Info("customer service pipeline demo ready",
		slog.Int("port", cfg.Server.Port),
		slog.Int("scenarios", len(session.DefaultScenarios)),
		slog.Duration("review_timeout", cfg.Pipeline.HumanReviewTimeout()),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case sig := <-sigChan:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
		}
	}
}
