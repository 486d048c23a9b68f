package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Observation is one daily close/volume print for an instrument.
// Corresponds to the observations table. Keyed by (Date, Instrument);
// a later write with the same key replaces the earlier one.
type Observation struct {
	Date       time.Time       // trading day, UTC midnight
	Instrument string          // ticker symbol
	Close      decimal.Decimal // closing price (adjusted)
	Volume     int64           // shares traded, non-negative
}

// Turnover returns close * volume in the quote currency.
func (o Observation) Turnover() float64 {
	return o.Close.InexactFloat64() * float64(o.Volume)
}

// Key returns the store key of the observation.
func (o Observation) Key() ObservationKey {
	return ObservationKey{Date: Day(o.Date), Instrument: o.Instrument}
}

// ObservationKey identifies an observation.
type ObservationKey struct {
	Date       time.Time
	Instrument string
}

// Day truncates t to a calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateLayout is the wire and storage layout for calendar days.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// SortObservations orders observations by (Instrument, Date) in place.
func SortObservations(obs []Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if obs[i].Instrument != obs[j].Instrument {
			return obs[i].Instrument < obs[j].Instrument
		}
		return obs[i].Date.Before(obs[j].Date)
	})
}
