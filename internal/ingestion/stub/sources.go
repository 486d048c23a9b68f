// Package stub provides in-memory ingestion sources for tests.
package stub

import (
	"context"
	"sync"
	"time"

	"equity-monitor/internal/domain"
)

// PriceCall records one FetchHistory request.
type PriceCall struct {
	Instruments []string
	Start       time.Time
}

// StubPriceSource returns fixed in-memory observations for testing.
// Implements ingestion.PriceSource interface.
type StubPriceSource struct {
	mu    sync.Mutex
	obs   map[string][]domain.Observation // keyed by instrument
	err   error
	calls []PriceCall
}

// NewStubPriceSource creates a stub price source serving obs.
func NewStubPriceSource(obs []domain.Observation) *StubPriceSource {
	m := make(map[string][]domain.Observation)
	for _, o := range obs {
		m[o.Instrument] = append(m[o.Instrument], o)
	}
	return &StubPriceSource{obs: m}
}

// Set replaces the rows served for an instrument.
func (s *StubPriceSource) Set(instrument string, rows []domain.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs[instrument] = append([]domain.Observation(nil), rows...)
}

// FailWith makes every subsequent FetchHistory return err.
func (s *StubPriceSource) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns the requests received so far.
func (s *StubPriceSource) Calls() []PriceCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PriceCall(nil), s.calls...)
}

// FetchHistory returns observations on or after start for the requested instruments.
// Returns copies to prevent mutation.
func (s *StubPriceSource) FetchHistory(_ context.Context, instruments []string, start time.Time) (map[string][]domain.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, PriceCall{Instruments: append([]string(nil), instruments...), Start: start})
	if s.err != nil {
		return nil, s.err
	}

	result := make(map[string][]domain.Observation)
	for _, inst := range instruments {
		for _, o := range s.obs[inst] {
			if !o.Date.Before(start) {
				result[inst] = append(result[inst], o)
			}
		}
	}
	return result, nil
}

// StubUniverseSource returns a fixed universe.
// Implements ingestion.UniverseSource interface.
type StubUniverseSource struct {
	entries []domain.UniverseEntry
	err     error
}

// NewStubUniverseSource creates a stub universe source.
func NewStubUniverseSource(entries []domain.UniverseEntry, err error) *StubUniverseSource {
	return &StubUniverseSource{entries: entries, err: err}
}

// Universe returns the configured entries.
func (s *StubUniverseSource) Universe(_ context.Context) ([]domain.UniverseEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.UniverseEntry(nil), s.entries...), nil
}

// StubProfileSource returns fixed profiles and counts lookups.
// Implements ingestion.ProfileSource interface.
type StubProfileSource struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
	failing  map[string]error
	lookups  map[string]int
}

// NewStubProfileSource creates a stub profile source.
func NewStubProfileSource(profiles map[string]domain.Profile) *StubProfileSource {
	return &StubProfileSource{
		profiles: profiles,
		failing:  make(map[string]error),
		lookups:  make(map[string]int),
	}
}

// Fail makes lookups for instrument return err.
func (s *StubProfileSource) Fail(instrument string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[instrument] = err
}

// Lookups returns how many times instrument was requested.
func (s *StubProfileSource) Lookups(instrument string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups[instrument]
}

// Profile returns the profile for instrument, or nil if none is configured.
func (s *StubProfileSource) Profile(_ context.Context, instrument string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lookups[instrument]++
	if err, ok := s.failing[instrument]; ok {
		return nil, err
	}
	p, ok := s.profiles[instrument]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
