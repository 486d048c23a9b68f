// Package main provides the HTTP read API over stored data:
// live and as-of rankings, leaderboards, saved snapshots and tag edits.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"equity-monitor/internal/api"
	"equity-monitor/internal/app"
	"equity-monitor/internal/config"
	"equity-monitor/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Parse flags (config values as defaults)
	addr := flag.String("addr", cfg.Server.Addr, "HTTP listen address")
	metricsAddr := flag.String("metrics-addr", cfg.Server.MetricsAddr, "Separate Prometheus metrics address (default: served on -addr)")
	backend := flag.String("storage", cfg.Storage.Backend, "Storage backend: memory, bolt, postgres")
	boltPath := flag.String("bolt-path", cfg.Storage.BoltPath, "Bolt database file")
	postgresDSN := flag.String("postgres-dsn", cfg.Storage.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.Storage.ClickhouseDSN, "ClickHouse connection string for observations (optional)")
	flag.Parse()

	cfg.Server.Addr = *addr
	cfg.Server.MetricsAddr = *metricsAddr
	cfg.Storage.Backend = *backend
	cfg.Storage.BoltPath = *boltPath
	cfg.Storage.PostgresDSN = *postgresDSN
	cfg.Storage.ClickhouseDSN = *clickhouseDSN

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics on a private registry, with the standard process collectors.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics("", reg)
	metricsHandler := observability.HandlerFor(reg)

	stores, cleanup, err := app.OpenStores(ctx, cfg.Storage, metrics, logger)
	if err != nil {
		logger.Fatalf("Failed to open stores: %v", err)
	}
	defer cleanup()

	orch := app.NewOrchestrator(cfg, stores, app.OrchestratorOptions{
		Metrics: metrics,
		Logger:  log.New(os.Stdout, "[orchestrator] ", log.LstdFlags|log.Lshortfile),
	})

	handlerOpts := api.Options{
		Service: orch,
		Metrics: metrics,
		Logger:  log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lshortfile),
	}
	if cfg.Server.MetricsAddr == "" {
		handlerOpts.MetricsHandler = metricsHandler
	}
	handler := api.NewHandler(handlerOpts)

	servers := []*http.Server{{
		Addr:         cfg.Server.Addr,
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}}
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		servers = append(servers, &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Printf("Starting HTTP server on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv)
	}

	// Wait for a signal or a listener failure
	select {
	case <-ctx.Done():
		logger.Println("Shutdown signal received")
	case err := <-errCh:
		logger.Printf("HTTP server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("WARN: shutdown %s: %v", srv.Addr, err)
		}
	}

	logger.Println("Shutdown complete")
}
