package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseTags(t *testing.T) {
	assert.Nil(t, ParseTags(""))
	assert.Nil(t, ParseTags("  "))
	assert.Equal(t, Tags{"AI", "Cloud Computing"}, ParseTags("AI, Cloud Computing"))
	assert.Equal(t, Tags{"AI", "Fintech"}, ParseTags("AI,Fintech, AI,, "))
}

func TestTags_String(t *testing.T) {
	assert.Equal(t, "", Tags(nil).String())
	assert.Equal(t, "AI, Semiconductor", NewTags("AI", "Semiconductor").String())
	assert.Equal(t, NewTags("AI", "Semiconductor"), ParseTags(NewTags("AI", "Semiconductor").String()))
}

func TestObservation_Turnover(t *testing.T) {
	o := Observation{Close: decimal.RequireFromString("12.5"), Volume: 1000}
	assert.InDelta(t, 12500.0, o.Turnover(), 1e-9)
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	got := Day(time.Date(2025, 3, 4, 23, 30, 0, 0, loc))
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), got)
}

func TestSortObservations(t *testing.T) {
	d1 := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	obs := []Observation{
		{Date: d2, Instrument: "B"},
		{Date: d2, Instrument: "A"},
		{Date: d1, Instrument: "B"},
		{Date: d1, Instrument: "A"},
	}
	SortObservations(obs)
	assert.Equal(t, "A", obs[0].Instrument)
	assert.Equal(t, d1, obs[0].Date)
	assert.Equal(t, "A", obs[1].Instrument)
	assert.Equal(t, d2, obs[1].Date)
	assert.Equal(t, "B", obs[2].Instrument)
	assert.Equal(t, d1, obs[2].Date)
}
