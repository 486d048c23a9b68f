package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/storage"
)

// snapshotRecord is one row of a snapshot. Undefined floats are stored as null.
type snapshotRecord struct {
	DisplayName       string   `json:"display_name"`
	Tags              string   `json:"tags"`
	Sector            string   `json:"sector"`
	Industry          string   `json:"industry"`
	SubIndustry       string   `json:"sub_industry"`
	CurrentPrice      *float64 `json:"current_price"`
	LatestTurnover    *float64 `json:"latest_turnover"`
	AvgTurnover20D    *float64 `json:"avg_turnover_20d"`
	TurnoverRatio     *float64 `json:"turnover_ratio"`
	YTDReturnPct      *float64 `json:"ytd_return_pct"`
	FiveDayReturnPct  *float64 `json:"five_day_return_pct"`
	RankYTD           *int     `json:"rank_ytd"`
	Rank5D            int      `json:"rank_5d"`
	RankTurnoverRatio int      `json:"rank_turnover_ratio"`
	RankVolume        int      `json:"rank_volume"`
	OverallRank       *int     `json:"overall_rank"`
}

// SnapshotStore implements storage.SnapshotStore with one nested bucket per
// scan date, keyed by instrument.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Save upserts rows keyed by (scanDate, instrument). No-op for empty rows.
func (s *SnapshotStore) Save(_ context.Context, scanDate time.Time, rows []domain.RankedRow) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if r.Instrument == "" {
			return storage.ErrInvalidInput
		}
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(bucketSnapshots).CreateBucketIfNotExists(dateKey(scanDate))
		if err != nil {
			return fmt.Errorf("create snapshot bucket: %w", err)
		}
		for _, r := range rows {
			if err := putJSON(b, []byte(r.Instrument), toSnapshotRecord(r)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load returns the snapshot for scanDate ordered by overall rank, nulls last.
func (s *SnapshotStore) Load(_ context.Context, scanDate time.Time) ([]domain.RankedRow, error) {
	out := []domain.RankedRow{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnapshots).Bucket(dateKey(scanDate))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec snapshotRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode snapshot row %s: %w", k, err)
			}
			out = append(out, fromSnapshotRecord(string(k), rec))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	domain.SortByOverallRank(out)
	return out, nil
}

// ListDates returns distinct scan dates, most recent first.
func (s *SnapshotStore) ListDates(_ context.Context) ([]time.Time, error) {
	var out []time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSnapshots).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if v != nil {
				continue // not a nested bucket
			}
			d, err := domain.ParseDate(string(k))
			if err != nil {
				return fmt.Errorf("parse snapshot date %q: %w", k, err)
			}
			out = append(out, d)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshot dates: %w", err)
	}
	return out, nil
}

// LatestDate returns the most recent scan date.
func (s *SnapshotStore) LatestDate(ctx context.Context) (time.Time, bool, error) {
	dates, err := s.ListDates(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	latest, ok := storage.LatestOf(dates)
	return latest, ok, nil
}

func toSnapshotRecord(r domain.RankedRow) snapshotRecord {
	return snapshotRecord{
		DisplayName:       r.DisplayName,
		Tags:              r.Tags.String(),
		Sector:            r.Sector,
		Industry:          r.Industry,
		SubIndustry:       r.SubIndustry,
		CurrentPrice:      optFloat(r.CurrentPrice),
		LatestTurnover:    optFloat(r.LatestTurnover),
		AvgTurnover20D:    optFloat(r.AvgTurnover20D),
		TurnoverRatio:     optFloat(r.TurnoverRatio),
		YTDReturnPct:      optFloatPtr(r.YTDReturnPct),
		FiveDayReturnPct:  optFloat(r.FiveDayReturnPct),
		RankYTD:           r.RankYTD,
		Rank5D:            r.Rank5D,
		RankTurnoverRatio: r.RankTurnoverRatio,
		RankVolume:        r.RankVolume,
		OverallRank:       r.OverallRank,
	}
}

func fromSnapshotRecord(instrument string, rec snapshotRecord) domain.RankedRow {
	return domain.RankedRow{
		Instrument:        instrument,
		DisplayName:       rec.DisplayName,
		Tags:              domain.ParseTags(rec.Tags),
		Sector:            rec.Sector,
		Industry:          rec.Industry,
		SubIndustry:       rec.SubIndustry,
		CurrentPrice:      floatOr(rec.CurrentPrice),
		LatestTurnover:    floatOr(rec.LatestTurnover),
		AvgTurnover20D:    floatOr(rec.AvgTurnover20D),
		TurnoverRatio:     floatOr(rec.TurnoverRatio),
		YTDReturnPct:      rec.YTDReturnPct,
		FiveDayReturnPct:  floatOr(rec.FiveDayReturnPct),
		RankYTD:           rec.RankYTD,
		Rank5D:            rec.Rank5D,
		RankTurnoverRatio: rec.RankTurnoverRatio,
		RankVolume:        rec.RankVolume,
		OverallRank:       rec.OverallRank,
	}
}
