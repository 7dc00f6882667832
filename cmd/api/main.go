package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopify-session-storage/internal/application"
	"shopify-session-storage/internal/application/webhook_handlers"
	"shopify-session-storage/internal/config"
	apiinfra "shopify-session-storage/internal/infrastructure/api"
	"shopify-session-storage/internal/infrastructure/metrics"
	"shopify-session-storage/internal/infrastructure/repository"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("SESSION_STORAGE_CONFIG"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage; migrations run in the background until Ready
	storage, err := repository.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create session storage")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storageMetrics, err := metrics.NewStorageMetrics(registry)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to register storage metrics")
	}

	// Initialize application services
	sessionService := application.NewSessionService(metrics.Instrument(storage, cfg.Backend, storageMetrics), logger)

	// Initialize webhook dispatcher and register handlers
	webhookDispatcher := application.NewWebhookDispatcher(logger)
	webhookDispatcher.RegisterHandler(webhook_handlers.NewAppUninstalledHandler(logger, sessionService))

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiinfra.CORS(cfg.Server.AllowedOrigins))

	if cfg.Server.AdminKey == "" {
		logger.Warn().Msg("server.admin_key is not set, session routes will reject every request")
	}

	apiinfra.NewHandlers(sessionService, webhookDispatcher, cfg.Shopify.APIKey, cfg.Shopify.APISecret, cfg.Server.AdminKey, logger).Mount(r)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := sessionService.Ready(ctx); err != nil {
			logger.Error().Err(err).Str("backend", cfg.Backend).Msg("Session storage failed to initialize")
			return
		}
		logger.Info().Str("backend", cfg.Backend).Msg("Session storage ready")
	}()

	go func() {
		logger.Info().Str("addr", cfg.Server.HTTPAddr).Str("backend", cfg.Backend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to shut down server")
	}
	if err := sessionService.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to disconnect session storage")
	}
}
