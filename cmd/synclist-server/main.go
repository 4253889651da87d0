package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kerhoff/synclist/internal/api"
	"github.com/Kerhoff/synclist/internal/config"
	"github.com/Kerhoff/synclist/internal/realtime"
	"github.com/Kerhoff/synclist/internal/repository/postgres"
	"github.com/Kerhoff/synclist/internal/service"
	"github.com/Kerhoff/synclist/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel)
	l.Info("Starting synclist server...")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := config.NewDatabase(ctx, cfg.DatabaseURL, l)
	if err != nil {
		l.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := db.Migrate(cfg.MigrationsPath); err != nil {
		l.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	listRepo := postgres.NewListRepository(db.DB)
	itemRepo := postgres.NewItemRepository(db.DB)

	// Service layer
	svc := service.New(l, listRepo, itemRepo)

	// Real-time layer
	registry := realtime.NewRoomRegistry(l)
	dispatcher := realtime.NewDispatcher(itemRepo, registry, l)
	wsHandler := realtime.NewHandler(registry, dispatcher, l, nil)

	// HTTP server for REST and WebSocket
	apiServer := api.NewServer(svc, wsHandler, l, cfg.AllowedOrigins)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrs := make(chan error, 2)
	serve := func(name string, srv *http.Server) {
		l.Infof("%s listening on %s", name, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrs <- err
		}
	}
	go serve("HTTP server", httpServer)
	go serve("Metrics server", metricsServer)

	l.Info("synclist server started successfully")

	select {
	case <-ctx.Done():
		l.Info("Received shutdown signal...")
	case err := <-serverErrs:
		l.Errorf("Server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var result *multierror.Error
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := db.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		l.Errorf("Shutdown finished with errors: %v", err)
		os.Exit(1)
	}

	l.Info("synclist server stopped")
}
