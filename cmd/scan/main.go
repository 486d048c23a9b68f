// Package main provides the scheduled scan entry point.
//
//	scan -mode=snapshot   refresh metadata, fetch prices, rank, save today's snapshot
//	scan -mode=update     refresh metadata and fetch prices only
//
// Exits non-zero when the scan fails or, in snapshot mode, ranks nothing.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"equity-monitor/internal/app"
	"equity-monitor/internal/config"
	"equity-monitor/internal/observability"
	"equity-monitor/internal/orchestrator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Parse flags (config values as defaults)
	mode := flag.String("mode", orchestrator.ModeSnapshot, "Scan mode: snapshot or update")
	backend := flag.String("storage", cfg.Storage.Backend, "Storage backend: memory, bolt, postgres")
	boltPath := flag.String("bolt-path", cfg.Storage.BoltPath, "Bolt database file")
	postgresDSN := flag.String("postgres-dsn", cfg.Storage.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.Storage.ClickhouseDSN, "ClickHouse connection string for observations (optional)")
	forceMetadata := flag.Bool("force-metadata", false, "Re-fetch every profile and fill empty tags")
	timeout := flag.Duration("timeout", 30*time.Minute, "Overall scan timeout")
	flag.Parse()

	cfg.Storage.Backend = *backend
	cfg.Storage.BoltPath = *boltPath
	cfg.Storage.PostgresDSN = *postgresDSN
	cfg.Storage.ClickhouseDSN = *clickhouseDSN

	// Setup logger
	logger := log.New(os.Stdout, "[scan] ", log.LstdFlags|log.Lshortfile)

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling scan...", sig)
		cancel()
	}()

	os.Exit(run(ctx, cfg, *mode, *forceMetadata, logger))
}

// run executes one scan and returns the process exit code.
func run(ctx context.Context, cfg *config.Config, mode string, force bool, logger *log.Logger) int {
	metrics := observability.NewMetrics("", nil)

	stores, cleanup, err := app.OpenStores(ctx, cfg.Storage, metrics, logger)
	if err != nil {
		logger.Printf("Failed to open stores: %v", err)
		return 1
	}
	defer cleanup()

	orch := app.NewOrchestrator(cfg, stores, app.OrchestratorOptions{
		ForceMetadata: force,
		Metrics:       metrics,
		Logger:        logger,
	})

	result, err := orch.Scan(ctx, mode)
	switch {
	case errors.Is(err, orchestrator.ErrNoData):
		logger.Printf("Scan produced no ranked rows: %v", err)
		return 2
	case err != nil:
		logger.Printf("Scan failed: %v", err)
		return 1
	}

	logger.Printf("Scan %s (%s) completed in %v:", result.RunID, result.Mode, result.Duration.Round(time.Millisecond))
	logger.Printf("  Instruments: %d", result.Instruments)
	if result.Fetch != nil {
		logger.Printf("  Observations merged: %d (source failed: %v)", result.Fetch.Merged, result.Fetch.SourceFailed)
	}
	if mode == orchestrator.ModeSnapshot {
		logger.Printf("  Ranked rows: %d, skipped: %d", len(result.Rows), len(result.Skipped))
		logger.Printf("  Snapshot %s: %d rows saved", result.ScanDate.Format("2006-01-02"), result.Saved)
	}
	return 0
}
