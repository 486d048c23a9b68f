package ingestion

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/observability"
	"equity-monitor/internal/storage"
)

// DefaultMetadataWorkers bounds concurrent profile lookups.
const DefaultMetadataWorkers = 5

// MetadataRefresher keeps the instrument metadata table in line with the
// index universe and enriches rows with provider profiles.
type MetadataRefresher struct {
	universe   UniverseSource
	profiles   ProfileSource
	classifier Classifier
	store      storage.MetadataStore
	workers    int
	now        func() time.Time
	metrics    *observability.Metrics
	logger     *log.Logger
}

// MetadataRefresherOptions contains configuration for creating a MetadataRefresher.
type MetadataRefresherOptions struct {
	Universe   UniverseSource
	Profiles   ProfileSource // optional; rows keep existing profile text without it
	Classifier Classifier    // optional; no tags are derived without it
	Store      storage.MetadataStore
	Workers    int // Default: 5
	Clock      func() time.Time
	Metrics    *observability.Metrics
	Logger     *log.Logger
}

// NewMetadataRefresher creates a new MetadataRefresher.
func NewMetadataRefresher(opts MetadataRefresherOptions) *MetadataRefresher {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultMetadataWorkers
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &MetadataRefresher{
		universe:   opts.Universe,
		profiles:   opts.Profiles,
		classifier: opts.Classifier,
		store:      opts.Store,
		workers:    workers,
		now:        now,
		metrics:    opts.Metrics,
		logger:     logger,
	}
}

// Refresh rebuilds the metadata table from the current universe.
//
// Existing description, industry and tags carry over. Profiles are fetched
// for rows missing a description or industry, or for every row when force is
// set. Derived tags are written only for instruments new to the table, or
// under force when the row has no tags; tags a user assigned are never
// replaced. Instruments that left the universe are dropped. If the universe
// cannot be resolved the existing table is returned unchanged.
func (r *MetadataRefresher) Refresh(ctx context.Context, force bool) ([]domain.InstrumentMetadata, error) {
	existing, err := r.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	universe, err := r.universe.Universe(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Printf("WARN: universe lookup failed, keeping %d existing rows: %v", len(existing), err)
		return existing, nil
	}
	universe = dedupeUniverse(universe)
	if len(universe) == 0 {
		r.logger.Printf("WARN: universe is empty, keeping %d existing rows", len(existing))
		return existing, nil
	}

	known := make(map[string]domain.InstrumentMetadata, len(existing))
	for _, m := range existing {
		known[m.Instrument] = m
	}

	now := r.now().UTC()
	rows := make([]domain.InstrumentMetadata, len(universe))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, entry := range universe {
		prev, ok := known[entry.Instrument]
		g.Go(func() error {
			rows[i] = r.refreshOne(gctx, entry, prev, ok, force, now)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Instrument < rows[j].Instrument
	})

	if err := r.store.ReplaceAll(ctx, rows); err != nil {
		return nil, fmt.Errorf("save metadata: %w", err)
	}

	added := countNew(rows, known)
	dropped := len(existing) - (len(rows) - added)
	r.metrics.SetMetadataInstruments(len(rows))
	r.logger.Printf("Metadata refreshed: %d instruments (%d new, %d dropped)", len(rows), added, dropped)
	return rows, nil
}

// SetTags records user-assigned tags for an instrument.
func (r *MetadataRefresher) SetTags(ctx context.Context, instrument string, tags domain.Tags) error {
	return r.store.SetTags(ctx, instrument, domain.NewTags(tags...))
}

func (r *MetadataRefresher) refreshOne(ctx context.Context, entry domain.UniverseEntry, prev domain.InstrumentMetadata, known, force bool, now time.Time) domain.InstrumentMetadata {
	m := domain.InstrumentMetadata{
		Instrument:    entry.Instrument,
		DisplayName:   entry.DisplayName,
		Sector:        entry.Sector,
		SubIndustry:   entry.SubIndustry,
		LastRefreshed: now,
	}
	if known {
		m.Description = prev.Description
		m.Industry = prev.Industry
		m.Tags = prev.Tags
	}

	if r.profiles != nil && (force || m.Description == "" || m.Industry == "") {
		p, err := r.profiles.Profile(ctx, entry.Instrument)
		switch {
		case err != nil:
			r.metrics.RecordProfileError()
			r.logger.Printf("WARN: profile %s: %v", entry.Instrument, err)
		case p != nil:
			if p.Description != "" {
				m.Description = p.Description
			}
			if p.Industry != "" {
				m.Industry = p.Industry
			}
		}
	}

	if r.classifier != nil && (!known || (force && m.Tags.IsEmpty())) {
		m.Tags = r.classifier.Classify(m.Description, m.Sector, m.SubIndustry)
	}
	return m
}

func dedupeUniverse(entries []domain.UniverseEntry) []domain.UniverseEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]domain.UniverseEntry, 0, len(entries))
	for _, e := range entries {
		if e.Instrument == "" {
			continue
		}
		if _, ok := seen[e.Instrument]; ok {
			continue
		}
		seen[e.Instrument] = struct{}{}
		out = append(out, e)
	}
	return out
}

func countNew(rows []domain.InstrumentMetadata, known map[string]domain.InstrumentMetadata) int {
	n := 0
	for _, m := range rows {
		if _, ok := known[m.Instrument]; !ok {
			n++
		}
	}
	return n
}
