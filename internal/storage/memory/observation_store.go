package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/storage"
)

// ObservationStore is an in-memory implementation of storage.ObservationStore.
type ObservationStore struct {
	mu   sync.RWMutex
	data map[domain.ObservationKey]domain.Observation
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{
		data: make(map[domain.ObservationKey]domain.Observation),
	}
}

// Upsert merges observations, last write wins per (date, instrument).
func (s *ObservationStore) Upsert(_ context.Context, obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	if err := storage.ValidateObservations(obs); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range obs {
		o.Date = domain.Day(o.Date)
		s.data[o.Key()] = o
	}
	return nil
}

// All returns every observation ordered by (instrument, date).
func (s *ObservationStore) All(_ context.Context) ([]domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Observation, 0, len(s.data))
	for _, o := range s.data {
		result = append(result, o)
	}
	domain.SortObservations(result)
	return result, nil
}

// ByInstrument returns observations for one instrument ordered by date.
func (s *ObservationStore) ByInstrument(_ context.Context, instrument string) ([]domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Observation
	for _, o := range s.data {
		if o.Instrument == instrument {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// LatestDate returns the maximum date across all instruments.
func (s *ObservationStore) LatestDate(_ context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for k := range s.data {
		if k.Date.After(latest) {
			latest = k.Date
		}
	}
	return latest, !latest.IsZero(), nil
}

// Instruments returns the distinct instruments in the store, sorted.
func (s *ObservationStore) Instruments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for k := range s.data {
		seen[k.Instrument] = struct{}{}
	}
	result := make([]string, 0, len(seen))
	for inst := range seen {
		result = append(result, inst)
	}
	sort.Strings(result)
	return result, nil
}

var _ storage.ObservationStore = (*ObservationStore)(nil)
