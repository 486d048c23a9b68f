package storage

import (
	"context"
	"time"

	"equity-monitor/internal/domain"
)

// ObservationStore provides access to the daily observations time series.
// Writes are last-write-wins on (date, instrument).
type ObservationStore interface {
	// Upsert merges observations. An existing row with the same (date, instrument)
	// is replaced. Returns ErrInvalidInput if any observation lacks an instrument.
	Upsert(ctx context.Context, obs []domain.Observation) error

	// All returns every observation ordered by (instrument, date) ASC.
	All(ctx context.Context) ([]domain.Observation, error)

	// ByInstrument returns observations for one instrument ordered by date ASC.
	ByInstrument(ctx context.Context, instrument string) ([]domain.Observation, error)

	// LatestDate returns the store-wide watermark. ok is false if the store is empty.
	LatestDate(ctx context.Context) (latest time.Time, ok bool, err error)

	// Instruments returns the distinct instruments with at least one observation.
	Instruments(ctx context.Context) ([]string, error)
}

// MetadataStore provides access to instrument_metadata storage.
type MetadataStore interface {
	// ReplaceAll swaps the whole table for the given rows.
	ReplaceAll(ctx context.Context, rows []domain.InstrumentMetadata) error

	// GetAll returns all rows ordered by instrument.
	GetAll(ctx context.Context) ([]domain.InstrumentMetadata, error)

	// Get returns one row. Returns ErrNotFound if not exists.
	Get(ctx context.Context, instrument string) (*domain.InstrumentMetadata, error)

	// SetTags overwrites the user-assigned tags. Returns ErrNotFound if not exists.
	SetTags(ctx context.Context, instrument string, tags domain.Tags) error
}

// SnapshotStore provides access to dated ranked snapshots.
type SnapshotStore interface {
	// Save upserts rows keyed by (scanDate, instrument). No-op for empty rows.
	Save(ctx context.Context, scanDate time.Time, rows []domain.RankedRow) error

	// Load returns the snapshot for scanDate ordered by overall rank ASC, nulls last.
	// Returns an empty slice if no snapshot exists.
	Load(ctx context.Context, scanDate time.Time) ([]domain.RankedRow, error)

	// ListDates returns distinct scan dates, most recent first.
	ListDates(ctx context.Context) ([]time.Time, error)

	// LatestDate returns the most recent scan date. ok is false if none exist.
	LatestDate(ctx context.Context) (latest time.Time, ok bool, err error)
}
