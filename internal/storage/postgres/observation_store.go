package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/storage"
)

// ObservationStore implements storage.ObservationStore using PostgreSQL.
type ObservationStore struct {
	pool *Pool
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(pool *Pool) *ObservationStore {
	return &ObservationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

const upsertObservation = `
	INSERT INTO observations (date, instrument, close, volume)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (instrument, date) DO UPDATE SET
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		updated_at = now()
`

// Upsert merges observations atomically, last write wins per (date, instrument).
func (s *ObservationStore) Upsert(ctx context.Context, obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	if err := storage.ValidateObservations(obs); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, o := range obs {
		batch.Queue(upsertObservation, domain.Day(o.Date), o.Instrument, o.Close, o.Volume)
		if batch.Len() >= batchSize {
			if err := sendBatch(ctx, tx, batch); err != nil {
				return wrapWriteErr("upsert observations", err)
			}
			batch = &pgx.Batch{}
		}
	}
	if err := sendBatch(ctx, tx, batch); err != nil {
		return wrapWriteErr("upsert observations", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// All returns every observation ordered by (instrument, date).
func (s *ObservationStore) All(ctx context.Context) ([]domain.Observation, error) {
	query := `
		SELECT date, instrument, close::text, volume
		FROM observations
		ORDER BY instrument ASC, date ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// ByInstrument returns observations for one instrument ordered by date.
func (s *ObservationStore) ByInstrument(ctx context.Context, instrument string) ([]domain.Observation, error) {
	query := `
		SELECT date, instrument, close::text, volume
		FROM observations
		WHERE instrument = $1
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, instrument)
	if err != nil {
		return nil, fmt.Errorf("get observations by instrument: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// LatestDate returns the maximum date across all instruments.
func (s *ObservationStore) LatestDate(ctx context.Context) (time.Time, bool, error) {
	var latest *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT max(date) FROM observations`).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("get latest observation date: %w", err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return domain.Day(*latest), true, nil
}

// Instruments returns the distinct instruments in the store, sorted.
func (s *ObservationStore) Instruments(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT instrument FROM observations ORDER BY instrument`)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
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
func scanObservations(rows pgx.Rows) ([]domain.Observation, error) {
	var out []domain.Observation

	for rows.Next() {
		var o domain.Observation
		var closeText string
		if err := rows.Scan(&o.Date, &o.Instrument, &closeText, &o.Volume); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		c, err := decimal.NewFromString(closeText)
		if err != nil {
			return nil, fmt.Errorf("parse close %q: %w", closeText, err)
		}
		o.Close = c
		o.Date = domain.Day(o.Date)
		out = append(out, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return out, nil
}

func wrapWriteErr(op string, err error) error {
	if isConstraintError(err) {
		return fmt.Errorf("%s: %w: %v", op, storage.ErrInvalidInput, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
