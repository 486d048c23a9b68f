package storage

import (
	"time"

	"equity-monitor/internal/domain"
)

// LatestOf returns the first date of a descending date list.
func LatestOf(dates []time.Time) (time.Time, bool) {
	if len(dates) == 0 {
		return time.Time{}, false
	}
	return dates[0], true
}

// ValidateObservations checks the minimal shape of observations before a write.
func ValidateObservations(obs []domain.Observation) error {
	for _, o := range obs {
		if o.Instrument == "" || o.Date.IsZero() || o.Volume < 0 {
			return ErrInvalidInput
		}
	}
	return nil
}
