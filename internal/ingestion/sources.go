package ingestion

import (
	"context"
	"time"

	"equity-monitor/internal/domain"
)

// PriceSource provides daily close/volume history from a market data provider.
type PriceSource interface {
	// FetchHistory returns observations per instrument from start (inclusive)
	// through the latest available day. Instruments the provider has no data
	// for are absent from the map. A non-nil error means the whole request
	// failed and no partial result should be used.
	FetchHistory(ctx context.Context, instruments []string, start time.Time) (map[string][]domain.Observation, error)
}

// UniverseSource lists the constituents of the tracked index.
type UniverseSource interface {
	// Universe returns the current constituents. An empty list means the
	// universe could not be resolved.
	Universe(ctx context.Context) ([]domain.UniverseEntry, error)
}

// ProfileSource provides company profile text for an instrument.
type ProfileSource interface {
	// Profile returns the industry and business description for instrument.
	Profile(ctx context.Context, instrument string) (*domain.Profile, error)
}

// Classifier derives theme tags from a business description.
type Classifier interface {
	Classify(description, sector, subIndustry string) domain.Tags
}
