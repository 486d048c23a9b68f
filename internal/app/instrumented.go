package app

import (
	"context"
	"errors"
	"time"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/observability"
	"equity-monitor/internal/storage"
)

// instrument wraps each store so every call records query latency and
// errors under the backend label. A nil m leaves stores unchanged.
func instrument(s *Stores, metrics *observability.Metrics, observationsBackend, backend string) *Stores {
	if metrics == nil {
		return s
	}
	return &Stores{
		Observations: &observationStore{next: s.Observations, m: metrics, db: observationsBackend},
		Metadata:     &metadataStore{next: s.Metadata, m: metrics, db: backend},
		Snapshots:    &snapshotStore{next: s.Snapshots, m: metrics, db: backend},
	}
}

var (
	_ storage.ObservationStore = (*observationStore)(nil)
	_ storage.MetadataStore    = (*metadataStore)(nil)
	_ storage.SnapshotStore    = (*snapshotStore)(nil)
)

type observationStore struct {
	next storage.ObservationStore
	m    *observability.Metrics
	db   string
}

func (s *observationStore) Upsert(ctx context.Context, obs []domain.Observation) error {
	start := time.Now()
	err := s.next.Upsert(ctx, obs)
	s.m.RecordDBQuery(s.db, "observations_upsert", time.Since(start), err)
	return err
}

func (s *observationStore) All(ctx context.Context) ([]domain.Observation, error) {
	start := time.Now()
	obs, err := s.next.All(ctx)
	s.m.RecordDBQuery(s.db, "observations_all", time.Since(start), err)
	return obs, err
}

func (s *observationStore) ByInstrument(ctx context.Context, instrument string) ([]domain.Observation, error) {
	start := time.Now()
	obs, err := s.next.ByInstrument(ctx, instrument)
	s.m.RecordDBQuery(s.db, "observations_by_instrument", time.Since(start), err)
	return obs, err
}

func (s *observationStore) LatestDate(ctx context.Context) (time.Time, bool, error) {
	start := time.Now()
	latest, ok, err := s.next.LatestDate(ctx)
	s.m.RecordDBQuery(s.db, "observations_latest_date", time.Since(start), err)
	return latest, ok, err
}

func (s *observationStore) Instruments(ctx context.Context) ([]string, error) {
	start := time.Now()
	out, err := s.next.Instruments(ctx)
	s.m.RecordDBQuery(s.db, "observations_instruments", time.Since(start), err)
	return out, err
}

type metadataStore struct {
	next storage.MetadataStore
	m    *observability.Metrics
	db   string
}

func (s *metadataStore) ReplaceAll(ctx context.Context, rows []domain.InstrumentMetadata) error {
	start := time.Now()
	err := s.next.ReplaceAll(ctx, rows)
	s.m.RecordDBQuery(s.db, "metadata_replace_all", time.Since(start), err)
	return err
}

func (s *metadataStore) GetAll(ctx context.Context) ([]domain.InstrumentMetadata, error) {
	start := time.Now()
	rows, err := s.next.GetAll(ctx)
	s.m.RecordDBQuery(s.db, "metadata_get_all", time.Since(start), err)
	return rows, err
}

// Get does not count ErrNotFound as a query error.
func (s *metadataStore) Get(ctx context.Context, instrument string) (*domain.InstrumentMetadata, error) {
	start := time.Now()
	row, err := s.next.Get(ctx, instrument)
	s.m.RecordDBQuery(s.db, "metadata_get", time.Since(start), queryErr(err))
	return row, err
}

func (s *metadataStore) SetTags(ctx context.Context, instrument string, tags domain.Tags) error {
	start := time.Now()
	err := s.next.SetTags(ctx, instrument, tags)
	s.m.RecordDBQuery(s.db, "metadata_set_tags", time.Since(start), queryErr(err))
	return err
}

type snapshotStore struct {
	next storage.SnapshotStore
	m    *observability.Metrics
	db   string
}

func (s *snapshotStore) Save(ctx context.Context, scanDate time.Time, rows []domain.RankedRow) error {
	start := time.Now()
	err := s.next.Save(ctx, scanDate, rows)
	s.m.RecordDBQuery(s.db, "snapshot_save", time.Since(start), err)
	return err
}

func (s *snapshotStore) Load(ctx context.Context, scanDate time.Time) ([]domain.RankedRow, error) {
	start := time.Now()
	rows, err := s.next.Load(ctx, scanDate)
	s.m.RecordDBQuery(s.db, "snapshot_load", time.Since(start), err)
	return rows, err
}

func (s *snapshotStore) ListDates(ctx context.Context) ([]time.Time, error) {
	start := time.Now()
	dates, err := s.next.ListDates(ctx)
	s.m.RecordDBQuery(s.db, "snapshot_list_dates", time.Since(start), err)
	return dates, err
}

func (s *snapshotStore) LatestDate(ctx context.Context) (time.Time, bool, error) {
	start := time.Now()
	latest, ok, err := s.next.LatestDate(ctx)
	s.m.RecordDBQuery(s.db, "snapshot_latest_date", time.Since(start), err)
	return latest, ok, err
}

func queryErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidInput) {
		return nil
	}
	return err
}
