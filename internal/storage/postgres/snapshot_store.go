package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/storage"
)

// snapshotSchema is applied on first use so a fresh database can take
// snapshots before migrations have run.
const snapshotSchema = `
	CREATE TABLE IF NOT EXISTS snapshots (
		scan_date           DATE NOT NULL,
		instrument          TEXT NOT NULL,
		display_name        TEXT NOT NULL DEFAULT '',
		tags                TEXT NOT NULL DEFAULT '',
		sector              TEXT NOT NULL DEFAULT '',
		industry            TEXT NOT NULL DEFAULT '',
		sub_industry        TEXT NOT NULL DEFAULT '',
		current_price       DOUBLE PRECISION,
		latest_turnover     DOUBLE PRECISION,
		avg_turnover_20d    DOUBLE PRECISION,
		turnover_ratio      DOUBLE PRECISION,
		ytd_return_pct      DOUBLE PRECISION,
		five_day_return_pct DOUBLE PRECISION,
		rank_ytd            INTEGER,
		rank_5d             INTEGER,
		rank_turnover_ratio INTEGER,
		rank_volume         INTEGER,
		overall_rank        INTEGER,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (scan_date, instrument)
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_scan_date ON snapshots (scan_date DESC);
`

const snapshotColumns = `
	instrument, display_name, tags, sector, industry, sub_industry,
	current_price, latest_turnover, avg_turnover_20d, turnover_ratio,
	ytd_return_pct, five_day_return_pct,
	rank_ytd, rank_5d, rank_turnover_ratio, rank_volume, overall_rank`

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool

	mu    sync.Mutex
	ready bool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// ensureSchema creates the snapshots table once per store.
// A failed attempt is retried on the next call.
func (s *SnapshotStore) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}
	if _, err := s.pool.Exec(ctx, snapshotSchema); err != nil {
		return fmt.Errorf("create snapshots schema: %w", err)
	}
	s.ready = true
	return nil
}

// Save upserts rows keyed by (scanDate, instrument). No-op for empty rows.
func (s *SnapshotStore) Save(ctx context.Context, scanDate time.Time, rows []domain.RankedRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	day := domain.Day(scanDate)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO snapshots (scan_date,` + snapshotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (scan_date, instrument) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			tags = EXCLUDED.tags,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			sub_industry = EXCLUDED.sub_industry,
			current_price = EXCLUDED.current_price,
			latest_turnover = EXCLUDED.latest_turnover,
			avg_turnover_20d = EXCLUDED.avg_turnover_20d,
			turnover_ratio = EXCLUDED.turnover_ratio,
			ytd_return_pct = EXCLUDED.ytd_return_pct,
			five_day_return_pct = EXCLUDED.five_day_return_pct,
			rank_ytd = EXCLUDED.rank_ytd,
			rank_5d = EXCLUDED.rank_5d,
			rank_turnover_ratio = EXCLUDED.rank_turnover_ratio,
			rank_volume = EXCLUDED.rank_volume,
			overall_rank = EXCLUDED.overall_rank,
			created_at = now()
	`

	batch := &pgx.Batch{}
	for _, r := range rows {
		if r.Instrument == "" {
			return storage.ErrInvalidInput
		}
		batch.Queue(query,
			day,
			r.Instrument,
			r.DisplayName,
			r.Tags.String(),
			r.Sector,
			r.Industry,
			r.SubIndustry,
			nullFloat(r.CurrentPrice),
			nullFloat(r.LatestTurnover),
			nullFloat(r.AvgTurnover20D),
			nullFloat(r.TurnoverRatio),
			nullFloatPtr(r.YTDReturnPct),
			nullFloat(r.FiveDayReturnPct),
			int32Ptr(r.RankYTD),
			int32(r.Rank5D),
			int32(r.RankTurnoverRatio),
			int32(r.RankVolume),
			int32Ptr(r.OverallRank),
		)
	}
	if err := sendBatch(ctx, tx, batch); err != nil {
		return wrapWriteErr("save snapshot", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Load returns the snapshot for scanDate ordered by overall rank, nulls last.
func (s *SnapshotStore) Load(ctx context.Context, scanDate time.Time) ([]domain.RankedRow, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE scan_date = $1
		ORDER BY overall_rank ASC NULLS LAST, instrument ASC
	`

	rows, err := s.pool.Query(ctx, query, domain.Day(scanDate))
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer rows.Close()

	out := []domain.RankedRow{}
	for rows.Next() {
		r, err := scanRankedRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return out, nil
}

// ListDates returns distinct scan dates, most recent first.
func (s *SnapshotStore) ListDates(ctx context.Context) ([]time.Time, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT DISTINCT scan_date FROM snapshots ORDER BY scan_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list snapshot dates: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan snapshot date: %w", err)
		}
		out = append(out, domain.Day(d))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot dates: %w", err)
	}
	return out, nil
}

// LatestDate returns the most recent scan date.
func (s *SnapshotStore) LatestDate(ctx context.Context) (time.Time, bool, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return time.Time{}, false, err
	}

	var latest *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT max(scan_date) FROM snapshots`).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("get latest snapshot date: %w", err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return domain.Day(*latest), true, nil
}

// scanRankedRow scans a single snapshot row.
func scanRankedRow(row pgx.Row) (domain.RankedRow, error) {
	var r domain.RankedRow
	var tags string
	var price, latest, avg, ratio, fiveDay *float64
	var rank5D, rankRatio, rankVolume, rankYTD, overall *int32

	err := row.Scan(
		&r.Instrument,
		&r.DisplayName,
		&tags,
		&r.Sector,
		&r.Industry,
		&r.SubIndustry,
		&price,
		&latest,
		&avg,
		&ratio,
		&r.YTDReturnPct,
		&fiveDay,
		&rankYTD,
		&rank5D,
		&rankRatio,
		&rankVolume,
		&overall,
	)
	if err != nil {
		return r, fmt.Errorf("scan snapshot row: %w", err)
	}

	r.Tags = domain.ParseTags(tags)
	r.CurrentPrice = valueOr(price)
	r.LatestTurnover = valueOr(latest)
	r.AvgTurnover20D = valueOr(avg)
	r.TurnoverRatio = valueOr(ratio)
	r.FiveDayReturnPct = valueOr(fiveDay)
	r.RankYTD = intPtr(rankYTD)
	r.Rank5D = intOr(rank5D)
	r.RankTurnoverRatio = intOr(rankRatio)
	r.RankVolume = intOr(rankVolume)
	r.OverallRank = intPtr(overall)
	return r, nil
}
