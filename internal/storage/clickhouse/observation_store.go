package clickhouse

import (
	"context"
	"fmt"
	"time"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/storage"
)

// ObservationStore implements storage.ObservationStore using ClickHouse.
//
// Rows are appended with an increasing version and collapsed by
// ReplacingMergeTree; every read uses FINAL so the latest version per
// (instrument, date) is returned before background merges run.
type ObservationStore struct {
	conn  *Conn
	clock func() time.Time
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(conn *Conn) *ObservationStore {
	return &ObservationStore{conn: conn, clock: time.Now}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// Upsert appends observations with a version newer than any prior write.
// Within one call the last observation for a key wins.
func (s *ObservationStore) Upsert(ctx context.Context, obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	if err := storage.ValidateObservations(obs); err != nil {
		return err
	}
	for _, o := range obs {
		if o.Close.IsNegative() {
			return storage.ErrInvalidInput
		}
	}

	latest := make(map[domain.ObservationKey]domain.Observation, len(obs))
	order := make([]domain.ObservationKey, 0, len(obs))
	for _, o := range obs {
		k := o.Key()
		if _, ok := latest[k]; !ok {
			order = append(order, k)
		}
		latest[k] = o
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO observations (date, instrument, close, volume, version)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	version := uint64(s.clock().UnixNano())
	for _, k := range order {
		o := latest[k]
		if err := batch.Append(k.Date, o.Instrument, o.Close, o.Volume, version); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// All returns every observation ordered by (instrument, date).
func (s *ObservationStore) All(ctx context.Context) ([]domain.Observation, error) {
	query := `
		SELECT date, instrument, close, volume
		FROM observations FINAL
		ORDER BY instrument ASC, date ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// ByInstrument returns observations for one instrument ordered by date.
func (s *ObservationStore) ByInstrument(ctx context.Context, instrument string) ([]domain.Observation, error) {
	query := `
		SELECT date, instrument, close, volume
		FROM observations FINAL
		WHERE instrument = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, instrument)
	if err != nil {
		return nil, fmt.Errorf("query observations by instrument: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// LatestDate returns the maximum date across all instruments.
func (s *ObservationStore) LatestDate(ctx context.Context) (time.Time, bool, error) {
	var latest time.Time
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT max(date), count() FROM observations`).Scan(&latest, &count)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query latest observation date: %w", err)
	}
	if count == 0 {
		return time.Time{}, false, nil
	}
	return domain.Day(latest), true, nil
}

// Instruments returns the distinct instruments in the store, sorted.
func (s *ObservationStore) Instruments(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT instrument FROM observations ORDER BY instrument`)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var inst string
		if err := rows.Scan(&inst); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instruments: %w", err)
	}
	return out, nil
}

// scanObservations scans multiple rows.
func scanObservations(rows chRows) ([]domain.Observation, error) {
	var out []domain.Observation

	for rows.Next() {
		var o domain.Observation
		if err := rows.Scan(&o.Date, &o.Instrument, &o.Close, &o.Volume); err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}
		o.Date = domain.Day(o.Date)
		out = append(out, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}

	return out, nil
}
