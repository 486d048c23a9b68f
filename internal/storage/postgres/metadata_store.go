package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/storage"
)

// MetadataStore implements storage.MetadataStore using PostgreSQL.
type MetadataStore struct {
	pool *Pool
}

// NewMetadataStore creates a new MetadataStore.
func NewMetadataStore(pool *Pool) *MetadataStore {
	return &MetadataStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MetadataStore = (*MetadataStore)(nil)

const metadataColumns = `instrument, display_name, sector, industry, sub_industry, description, tags, last_refreshed`

// ReplaceAll swaps the whole table for rows in one transaction.
func (s *MetadataStore) ReplaceAll(ctx context.Context, rows []domain.InstrumentMetadata) error {
	for _, m := range rows {
		if m.Instrument == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM instrument_metadata`); err != nil {
		return fmt.Errorf("clear instrument metadata: %w", err)
	}

	query := `
		INSERT INTO instrument_metadata (` + metadataColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (instrument) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			sub_industry = EXCLUDED.sub_industry,
			description = EXCLUDED.description,
			tags = EXCLUDED.tags,
			last_refreshed = EXCLUDED.last_refreshed
	`

	batch := &pgx.Batch{}
	for _, m := range rows {
		batch.Queue(query,
			m.Instrument,
			m.DisplayName,
			m.Sector,
			m.Industry,
			m.SubIndustry,
			m.Description,
			m.Tags.String(),
			nullTime(m.LastRefreshed),
		)
	}
	if err := sendBatch(ctx, tx, batch); err != nil {
		return wrapWriteErr("insert instrument metadata", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetAll returns all rows ordered by instrument.
func (s *MetadataStore) GetAll(ctx context.Context) ([]domain.InstrumentMetadata, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+metadataColumns+` FROM instrument_metadata ORDER BY instrument`)
	if err != nil {
		return nil, fmt.Errorf("get all instrument metadata: %w", err)
	}
	defer rows.Close()

	var out []domain.InstrumentMetadata
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instrument metadata: %w", err)
	}
	return out, nil
}

// Get returns one row. Returns ErrNotFound if not exists.
func (s *MetadataStore) Get(ctx context.Context, instrument string) (*domain.InstrumentMetadata, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+metadataColumns+` FROM instrument_metadata WHERE instrument = $1`, instrument)
	m, err := scanMetadata(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get instrument metadata: %w", err)
	}
	return m, nil
}

// SetTags overwrites the tags of one row. Returns ErrNotFound if not exists.
func (s *MetadataStore) SetTags(ctx context.Context, instrument string, tags domain.Tags) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE instrument_metadata SET tags = $2 WHERE instrument = $1`,
		instrument, tags.String(),
	)
	if err != nil {
		return fmt.Errorf("set tags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanMetadata scans a single row into InstrumentMetadata.
func scanMetadata(row pgx.Row) (*domain.InstrumentMetadata, error) {
	var m domain.InstrumentMetadata
	var tags string
	var refreshed *time.Time

	err := row.Scan(
		&m.Instrument,
		&m.DisplayName,
		&m.Sector,
		&m.Industry,
		&m.SubIndustry,
		&m.Description,
		&tags,
		&refreshed,
	)
	if err != nil {
		return nil, err
	}

	m.Tags = domain.ParseTags(tags)
	if refreshed != nil {
		m.LastRefreshed = refreshed.UTC()
	}
	return &m, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
