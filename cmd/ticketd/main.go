package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-rules/internal/api/http"
	"github.com/spec-kit/ticket-rules/internal/api/http/handlers"
	"github.com/spec-kit/ticket-rules/internal/app"
	"github.com/spec-kit/ticket-rules/internal/config"
	"github.com/spec-kit/ticket-rules/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.Bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to bootstrap", zap.Error(err))
	}
	defer application.Close()

	probes := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(probes, logger, observability.NewMetrics())
	httptransport.RegisterRoutes(probes, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, application.HealthChecks()),
	})

	go func() {
		if err := probes.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	logger.Info("ticket rule engine ready", zap.String("probe_addr", cfg.App.Addr()))
	waitForShutdown(logger)

	_ = probes.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
