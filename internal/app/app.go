// Package app wires configuration, stores and providers into an
// Orchestrator for the cmd binaries.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"equity-monitor/internal/classify"
	"equity-monitor/internal/config"
	"equity-monitor/internal/ingestion"
	"equity-monitor/internal/observability"
	"equity-monitor/internal/orchestrator"
	"equity-monitor/internal/provider/wiki"
	"equity-monitor/internal/provider/yahoo"
	"equity-monitor/internal/storage"
	"equity-monitor/internal/storage/boltdb"
	chstore "equity-monitor/internal/storage/clickhouse"
	"equity-monitor/internal/storage/memory"
	"equity-monitor/internal/storage/migrations"
	pgstore "equity-monitor/internal/storage/postgres"
)

// Stores holds the storage implementations used by a run.
type Stores struct {
	Observations storage.ObservationStore
	Metadata     storage.MetadataStore
	Snapshots    storage.SnapshotStore
}

// OpenStores opens the configured backend. Observations move to ClickHouse
// when a ClickHouse DSN is set. With non-nil metrics every store call is
// timed. The returned cleanup closes every connection.
func OpenStores(ctx context.Context, cfg config.StorageConfig, metrics *observability.Metrics, logger *log.Logger) (*Stores, func(), error) {
	if logger == nil {
		logger = log.Default()
	}

	var stores *Stores
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Backend {
	case config.BackendMemory:
		logger.Println("Using in-memory storage (data is lost on exit)")
		stores = &Stores{
			Observations: memory.NewObservationStore(),
			Metadata:     memory.NewMetadataStore(),
			Snapshots:    memory.NewSnapshotStore(),
		}

	case config.BackendBolt:
		if dir := filepath.Dir(cfg.BoltPath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		db, err := boltdb.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { db.Close() })
		logger.Printf("Using bolt storage at %s", cfg.BoltPath)
		stores = &Stores{
			Observations: boltdb.NewObservationStore(db),
			Metadata:     boltdb.NewMetadataStore(db),
			Snapshots:    boltdb.NewSnapshotStore(db),
		}

	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Println("Using postgres storage")
		stores = &Stores{
			Observations: pgstore.NewObservationStore(pool),
			Metadata:     pgstore.NewMetadataStore(pool),
			Snapshots:    pgstore.NewSnapshotStore(pool),
		}

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	observationsBackend := cfg.Backend
	if cfg.ClickhouseDSN != "" {
		if err := chstore.EnsureDatabase(ctx, cfg.ClickhouseDSN); err != nil {
			cleanup()
			return nil, nil, err
		}
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { conn.Close() })
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		logger.Println("Using clickhouse for observations")
		stores.Observations = chstore.NewObservationStore(conn)
		observationsBackend = "clickhouse"
	}

	return instrument(stores, metrics, observationsBackend, cfg.Backend), cleanup, nil
}

// OrchestratorOptions are the run-specific settings of NewOrchestrator.
type OrchestratorOptions struct {
	ForceMetadata bool
	Metrics       *observability.Metrics
	Logger        *log.Logger
}

// NewOrchestrator builds the scan pipeline over stores with the live
// universe, profile and price providers.
func NewOrchestrator(cfg *config.Config, stores *Stores, opts OrchestratorOptions) *orchestrator.Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	universe := wiki.NewUniverseSource(wiki.WithURL(cfg.Provider.UniverseURL))
	profiles := yahoo.NewProfileClient(
		yahoo.WithBaseURL(cfg.Provider.YahooBaseURL),
		yahoo.WithTimeout(cfg.Provider.HTTPTimeout),
		yahoo.WithMaxRetries(cfg.Provider.MaxRetries),
		yahoo.WithRate(cfg.Provider.ProfileRPS),
		yahoo.WithProfileMetrics(opts.Metrics),
	)
	prices := yahoo.NewPriceSource(
		yahoo.WithChartEndpoint(cfg.Provider.YahooBaseURL, cfg.Provider.HTTPTimeout),
		yahoo.WithChartWorkers(cfg.Provider.ChartWorkers),
		yahoo.WithPriceMetrics(opts.Metrics),
		yahoo.WithPriceLogger(logger),
	)

	refresher := ingestion.NewMetadataRefresher(ingestion.MetadataRefresherOptions{
		Universe:   universe,
		Profiles:   profiles,
		Classifier: classify.New(),
		Store:      stores.Metadata,
		Workers:    cfg.Fetch.MetadataWorkers,
		Metrics:    opts.Metrics,
		Logger:     logger,
	})
	updater := ingestion.NewPriceUpdater(ingestion.PriceUpdaterOptions{
		Source:      prices,
		Store:       stores.Observations,
		HistoryDays: cfg.Fetch.HistoryDays,
		OverlapDays: cfg.Fetch.OverlapDays,
		Metrics:     opts.Metrics,
		Logger:      logger,
	})

	return orchestrator.New(orchestrator.Options{
		Refresher:        refresher,
		Updater:          updater,
		ObservationStore: stores.Observations,
		MetadataStore:    stores.Metadata,
		SnapshotStore:    stores.Snapshots,
		ForceMetadata:    opts.ForceMetadata,
		Metrics:          opts.Metrics,
		Logger:           logger,
	})
}
