package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu     sync.RWMutex
	byDate map[time.Time]map[string]domain.RankedRow // scan_date -> instrument -> row
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		byDate: make(map[time.Time]map[string]domain.RankedRow),
	}
}

// Save upserts rows keyed by (scanDate, instrument).
func (s *SnapshotStore) Save(_ context.Context, scanDate time.Time, rows []domain.RankedRow) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if r.Instrument == "" {
			return storage.ErrInvalidInput
		}
	}

	day := domain.Day(scanDate)

	s.mu.Lock()
	defer s.mu.Unlock()

	partition, ok := s.byDate[day]
	if !ok {
		partition = make(map[string]domain.RankedRow, len(rows))
		s.byDate[day] = partition
	}
	for _, r := range rows {
		partition[r.Instrument] = copyRow(r)
	}
	return nil
}

// Load returns the snapshot for scanDate ordered by overall rank.
func (s *SnapshotStore) Load(_ context.Context, scanDate time.Time) ([]domain.RankedRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	partition := s.byDate[domain.Day(scanDate)]
	result := make([]domain.RankedRow, 0, len(partition))
	for _, r := range partition {
		result = append(result, copyRow(r))
	}
	domain.SortByOverallRank(result)
	return result, nil
}

// ListDates returns distinct scan dates, most recent first.
func (s *SnapshotStore) ListDates(_ context.Context) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dates := make([]time.Time, 0, len(s.byDate))
	for d := range s.byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].After(dates[j])
	})
	return dates, nil
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

// copyRow deep-copies the pointer and slice fields of a row.
func copyRow(r domain.RankedRow) domain.RankedRow {
	r.Tags = append(domain.Tags(nil), r.Tags...)
	if r.YTDReturnPct != nil {
		v := *r.YTDReturnPct
		r.YTDReturnPct = &v
	}
	if r.RankYTD != nil {
		v := *r.RankYTD
		r.RankYTD = &v
	}
	if r.OverallRank != nil {
		v := *r.OverallRank
		r.OverallRank = &v
	}
	return r
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
