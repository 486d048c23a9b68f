package memory

import (
	"context"
	"sort"
	"sync"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/storage"
)

// MetadataStore is an in-memory implementation of storage.MetadataStore.
type MetadataStore struct {
	mu   sync.RWMutex
	rows map[string]domain.InstrumentMetadata // keyed by instrument
}

// NewMetadataStore creates a new in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		rows: make(map[string]domain.InstrumentMetadata),
	}
}

// ReplaceAll swaps the whole table.
func (s *MetadataStore) ReplaceAll(_ context.Context, rows []domain.InstrumentMetadata) error {
	next := make(map[string]domain.InstrumentMetadata, len(rows))
	for _, m := range rows {
		if m.Instrument == "" {
			return storage.ErrInvalidInput
		}
		m.Tags = append(domain.Tags(nil), m.Tags...)
		next[m.Instrument] = m
	}

	s.mu.Lock()
	s.rows = next
	s.mu.Unlock()
	return nil
}

// GetAll returns all rows ordered by instrument.
func (s *MetadataStore) GetAll(_ context.Context) ([]domain.InstrumentMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InstrumentMetadata, 0, len(s.rows))
	for _, m := range s.rows {
		m.Tags = append(domain.Tags(nil), m.Tags...)
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Instrument < result[j].Instrument
	})
	return result, nil
}

// Get returns one row. Returns ErrNotFound if not exists.
func (s *MetadataStore) Get(_ context.Context, instrument string) (*domain.InstrumentMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.rows[instrument]
	if !ok {
		return nil, storage.ErrNotFound
	}
	m.Tags = append(domain.Tags(nil), m.Tags...)
	return &m, nil
}

// SetTags overwrites the tags of one row. Returns ErrNotFound if not exists.
func (s *MetadataStore) SetTags(_ context.Context, instrument string, tags domain.Tags) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.rows[instrument]
	if !ok {
		return storage.ErrNotFound
	}
	m.Tags = append(domain.Tags(nil), tags...)
	s.rows[instrument] = m
	return nil
}

var _ storage.MetadataStore = (*MetadataStore)(nil)
