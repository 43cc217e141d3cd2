package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/cortex/internal/analysis"
	"github.com/fyrsmithlabs/cortex/internal/config"
	"github.com/fyrsmithlabs/cortex/internal/events"
	httpserver "github.com/fyrsmithlabs/cortex/internal/http"
	"github.com/fyrsmithlabs/cortex/internal/journal"
	"github.com/fyrsmithlabs/cortex/internal/logging"
	"github.com/fyrsmithlabs/cortex/internal/mcp"
	"github.com/fyrsmithlabs/cortex/internal/secrets"
	"github.com/fyrsmithlabs/cortex/internal/services"
	"github.com/fyrsmithlabs/cortex/internal/storage"
	"github.com/fyrsmithlabs/cortex/internal/telemetry"
)

// run loads configuration, wires the services and serves until ctx is
// cancelled.
func run(ctx context.Context, configPath, mode string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	if mode == modeMCP {
		// stdout carries the MCP protocol.
		logCfg.Output = logging.OutputConfig{Stderr: true}
	}
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	a, err := newApp(ctx, cfg, logger.Underlying())
	if err != nil {
		return err
	}
	defer a.Close()

	switch mode {
	case modeMCP:
		return serveMCP(ctx, a)
	default:
		return serveHTTP(ctx, a, cfg)
	}
}

// app holds the wired services and everything that must be closed.
type app struct {
	registry  services.Registry
	backend   storage.Backend
	publisher events.Publisher
	telemetry *telemetry.Telemetry
	logger    *zap.Logger
	timeout   config.Duration
}

// newApp builds every service described by cfg.
//
// Order matters: telemetry first so the journal and front ends pick up its
// providers, storage before the journal, events last so a NATS outage only
// costs event delivery.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version), logger.Named("telemetry"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	backend, err := storage.Open(ctx, storage.Config{Driver: cfg.Storage.Driver, Path: cfg.Storage.Path})
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	a := &app{
		backend:   backend,
		telemetry: tel,
		logger:    logger,
		timeout:   cfg.Server.ShutdownTimeout,
	}

	client, err := analysis.NewClient(cfg.Analysis, logger.Named("analysis"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create analysis client: %w", err)
	}

	redactor, err := secrets.NewRedactor(cfg.Secrets, logger.Named("secrets"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create secret redactor: %w", err)
	}
	if err := redactor.Watch(ctx); err != nil {
		logger.Warn("allowlist changes will not be picked up", zap.Error(err))
	}

	publisher, err := events.Connect(cfg.Events, logger.Named("events"))
	if err != nil {
		logger.Warn("events disabled: NATS unavailable", zap.Error(err))
		publisher = events.NoopPublisher{}
	}
	a.publisher = publisher

	svc, err := journal.NewService(journal.Options{
		Backend:          backend,
		Analyzer:         client,
		Redactor:         redactor,
		Publisher:        publisher,
		ClusterThreshold: cfg.Analytics.ClusterThreshold,
		Logger:           logger.Named("journal"),
		Tracer:           tel.Tracer("github.com/fyrsmithlabs/cortex/internal/journal"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}

	a.registry = services.NewRegistry(services.Options{
		Journal:   svc,
		Publisher: publisher,
		Telemetry: tel,
		Version:   version,
	})

	logger.Info("cortex initialized",
		zap.String("version", version),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("events", cfg.Events.Enabled),
		zap.Bool("secrets", redactor.Enabled()),
		zap.Bool("telemetry", tel.IsEnabled()),
	)
	return a, nil
}

// Close releases resources in reverse order of creation.
func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("closing event publisher", zap.Error(err))
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Warn("closing storage", zap.Error(err))
		}
	}
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout.Duration())
		defer cancel()
		if err := a.telemetry.Shutdown(ctx); err != nil {
			a.logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}
}

func serveHTTP(ctx context.Context, a *app, cfg *config.Config) error {
	srv, err := httpserver.NewServer(a.registry, a.logger.Named("http"), &httpserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.logger.Info("server shutdown complete")
	return nil
}

func serveMCP(ctx context.Context, a *app) error {
	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "cortex",
		Version: version,
		Logger:  a.logger.Named("mcp"),
	}, a.registry)
	if err != nil {
		return fmt.Errorf("failed to create mcp server: %w", err)
	}
	return srv.Run(ctx)
}
