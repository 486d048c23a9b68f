// Package orchestrator runs the scan flows end to end.
// It coordinates: metadata refresh → incremental fetch → ranking → snapshot
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/ingestion"
	"equity-monitor/internal/observability"
	"equity-monitor/internal/ranking"
	"equity-monitor/internal/storage"
)

// Scan modes.
const (
	ModeSnapshot = "snapshot" // refresh, fetch, rank and save today's snapshot
	ModeUpdate   = "update"   // refresh and fetch only
)

// Scan outcomes, used as metric labels.
const (
	StatusOK    = "ok"
	StatusEmpty = "empty"
	StatusError = "error"
)

var (
	// ErrNoData is returned when a ranking or snapshot has no rows.
	ErrNoData = errors.New("no data")

	// ErrUnknownMode is returned for a scan mode other than snapshot or update.
	ErrUnknownMode = errors.New("unknown scan mode")
)

// Orchestrator coordinates the scan pipeline and serves read queries over
// the stores.
type Orchestrator struct {
	refresher    *ingestion.MetadataRefresher
	updater      *ingestion.PriceUpdater
	observations storage.ObservationStore
	metadata     storage.MetadataStore
	snapshots    storage.SnapshotStore

	forceMetadata bool
	now           func() time.Time
	metrics       *observability.Metrics
	logger        *log.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Required collaborators
	Refresher        *ingestion.MetadataRefresher
	Updater          *ingestion.PriceUpdater
	ObservationStore storage.ObservationStore
	MetadataStore    storage.MetadataStore
	SnapshotStore    storage.SnapshotStore

	ForceMetadata bool             // re-fetch every profile on refresh
	Clock         func() time.Time // Default: time.Now
	Metrics       *observability.Metrics
	Logger        *log.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Orchestrator{
		refresher:     opts.Refresher,
		updater:       opts.Updater,
		observations:  opts.ObservationStore,
		metadata:      opts.MetadataStore,
		snapshots:     opts.SnapshotStore,
		forceMetadata: opts.ForceMetadata,
		now:           now,
		metrics:       opts.Metrics,
		logger:        logger,
	}
}

// ScanResult contains results from one scan.
type ScanResult struct {
	RunID       string
	Mode        string
	ScanDate    time.Time
	Instruments int                     // metadata rows after refresh
	Fetch       *ingestion.UpdateResult // nil if the fetch step did not run
	Rows        []domain.RankedRow      // ranked table; empty in update mode
	Skipped     []ranking.Skip
	Saved       int // snapshot rows written
	Duration    time.Duration
}

// Scan runs one scan in the given mode.
//
// Phases:
//  1. Refresh metadata from the universe
//  2. Fetch new observations for every instrument in the metadata
//  3. Rank as of today (snapshot mode)
//  4. Save the ranked table under today's date (snapshot mode)
//
// In snapshot mode an empty ranked table returns ErrNoData and nothing is saved.
func (o *Orchestrator) Scan(ctx context.Context, mode string) (*ScanResult, error) {
	if mode != ModeSnapshot && mode != ModeUpdate {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	started := o.now()
	result := &ScanResult{
		RunID:    uuid.NewString(),
		Mode:     mode,
		ScanDate: domain.Day(started),
	}

	err := o.scan(ctx, result)
	result.Duration = o.now().Sub(started)

	status := StatusOK
	switch {
	case errors.Is(err, ErrNoData):
		status = StatusEmpty
	case err != nil:
		status = StatusError
	}
	o.metrics.RecordScan(mode, status, result.Duration, result.Saved)

	if err != nil {
		o.logger.Printf("Scan %s (%s) failed after %s: %v", result.RunID, mode, result.Duration.Round(time.Millisecond), err)
		return result, err
	}
	o.logger.Printf("Scan %s (%s) completed in %s: %d instruments, %d rows saved",
		result.RunID, mode, result.Duration.Round(time.Millisecond), result.Instruments, result.Saved)
	return result, nil
}

func (o *Orchestrator) scan(ctx context.Context, result *ScanResult) error {
	o.logger.Printf("Phase 1: Refreshing metadata...")
	meta, err := o.refresher.Refresh(ctx, o.forceMetadata)
	if err != nil {
		return fmt.Errorf("phase 1 (metadata refresh) failed: %w", err)
	}
	result.Instruments = len(meta)

	instruments := make([]string, 0, len(meta))
	for _, m := range meta {
		instruments = append(instruments, m.Instrument)
	}

	o.logger.Printf("Phase 2: Fetching observations for %d instruments...", len(instruments))
	if len(instruments) > 0 {
		fetch, err := o.updater.Update(ctx, instruments)
		result.Fetch = fetch
		if err != nil {
			return fmt.Errorf("phase 2 (fetch) failed: %w", err)
		}
	}

	if result.Mode == ModeUpdate {
		return nil
	}

	o.logger.Printf("Phase 3: Ranking as of %s...", result.ScanDate.Format(domain.DateLayout))
	ranked, err := o.evaluate(ctx, result.ScanDate)
	if err != nil {
		return fmt.Errorf("phase 3 (ranking) failed: %w", err)
	}
	result.Rows = ranked.Rows
	result.Skipped = ranked.Skipped
	if len(ranked.Rows) == 0 {
		return ErrNoData
	}

	o.logger.Printf("Phase 4: Saving snapshot of %d rows...", len(ranked.Rows))
	if err := o.snapshots.Save(ctx, result.ScanDate, ranked.Rows); err != nil {
		return fmt.Errorf("phase 4 (snapshot) failed: %w", err)
	}
	result.Saved = len(ranked.Rows)
	return nil
}

// Rankings recomputes the ranked table as of asOf from stored data.
// Nothing is fetched. Returns ErrNoData if no instrument can be ranked.
func (o *Orchestrator) Rankings(ctx context.Context, asOf time.Time) ([]domain.RankedRow, error) {
	res, err := o.evaluate(ctx, asOf)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, ErrNoData
	}
	return res.Rows, nil
}

// Leaderboard ranks groups of the table computed as of asOf.
func (o *Orchestrator) Leaderboard(ctx context.Context, asOf time.Time, by ranking.GroupBy) ([]ranking.LeaderboardRow, error) {
	rows, err := o.Rankings(ctx, asOf)
	if err != nil {
		return nil, err
	}
	return ranking.Leaderboard(rows, by), nil
}

// Snapshot loads the snapshot saved for date. Returns ErrNoData if none exists.
func (o *Orchestrator) Snapshot(ctx context.Context, date time.Time) (*domain.Snapshot, error) {
	rows, err := o.snapshots.Load(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	return &domain.Snapshot{ScanDate: domain.Day(date), Rows: rows}, nil
}

// LatestSnapshot loads the most recent snapshot. Returns ErrNoData if none exists.
func (o *Orchestrator) LatestSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	latest, ok, err := o.snapshots.LatestDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest snapshot date: %w", err)
	}
	if !ok {
		return nil, ErrNoData
	}
	return o.Snapshot(ctx, latest)
}

// SnapshotDates lists saved scan dates, most recent first.
func (o *Orchestrator) SnapshotDates(ctx context.Context) ([]time.Time, error) {
	return o.snapshots.ListDates(ctx)
}

// SetTags records user-assigned tags for an instrument.
func (o *Orchestrator) SetTags(ctx context.Context, instrument string, tags domain.Tags) error {
	return o.refresher.SetTags(ctx, instrument, tags)
}

// Instrument returns the metadata row of one instrument.
func (o *Orchestrator) Instrument(ctx context.Context, instrument string) (*domain.InstrumentMetadata, error) {
	return o.metadata.Get(ctx, instrument)
}

func (o *Orchestrator) evaluate(ctx context.Context, asOf time.Time) (*ranking.Result, error) {
	series, err := o.observations.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	meta, err := o.metadata.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	res := ranking.Evaluate(series, meta, asOf)
	for _, s := range res.Skipped {
		o.logger.Printf("WARN: skipped %s: %v", s.Instrument, s.Err)
	}
	o.metrics.RecordSkipped("ranking", len(res.Skipped))
	return res, nil
}
