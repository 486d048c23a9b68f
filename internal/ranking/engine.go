// Package ranking computes per-instrument performance and liquidity metrics
// and ranks instruments against each other.
//
// Everything in this package is a pure function of its inputs: no stores are
// read or written and no clock is consulted, so the same inputs always produce
// the same table. Turnover fields of the output are in millions
// (domain.TurnoverUnit).
package ranking

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"equity-monitor/internal/domain"
)

// Window sizes used by the metrics.
const (
	TurnoverWindow = 20 // rows in the average turnover window
	FiveDayLag     = 5  // rows back for the five-day return
)

// Errors recorded for skipped instruments.
var (
	ErrNoMetadata = errors.New("instrument missing from metadata")
	ErrZeroPrice  = errors.New("zero base price")
)

// Skip records an instrument excluded from the result and why.
type Skip struct {
	Instrument string
	Err        error
}

// Result is the output of Evaluate.
type Result struct {
	Rows    []domain.RankedRow // ordered by OverallRank ASC, unranked last
	Skipped []Skip             // instruments dropped by per-instrument failures
}

// Compute returns the ranked table as of asOf.
// Only observations with date <= asOf are considered.
func Compute(series []domain.Observation, metadata []domain.InstrumentMetadata, asOf time.Time) []domain.RankedRow {
	return Evaluate(series, metadata, asOf).Rows
}

// Evaluate is Compute plus the list of instruments that were skipped.
func Evaluate(series []domain.Observation, metadata []domain.InstrumentMetadata, asOf time.Time) *Result {
	cutoff := domain.Day(asOf)

	meta := make(map[string]domain.InstrumentMetadata, len(metadata))
	for _, m := range metadata {
		meta[m.Instrument] = m
	}

	groups := groupByInstrument(series, cutoff)

	instruments := make([]string, 0, len(groups))
	for inst := range groups {
		instruments = append(instruments, inst)
	}
	sort.Strings(instruments)

	result := &Result{}
	var computed []instrumentMetrics
	for _, inst := range instruments {
		m, ok := meta[inst]
		if !ok {
			result.Skipped = append(result.Skipped, Skip{Instrument: inst, Err: ErrNoMetadata})
			continue
		}
		im, err := computeInstrument(groups[inst], cutoff)
		if err != nil {
			result.Skipped = append(result.Skipped, Skip{Instrument: inst, Err: err})
			continue
		}
		im.meta = m
		computed = append(computed, im)
	}

	result.Rows = rank(computed)
	return result
}

// instrumentMetrics holds raw (currency unit) metrics for one instrument.
type instrumentMetrics struct {
	meta           domain.InstrumentMetadata
	currentPrice   float64
	latestTurnover float64
	avgTurnover    float64
	turnoverRatio  float64
	ytdReturn      *float64
	fiveDayReturn  float64
}

// groupByInstrument buckets observations by instrument, keeps rows on or
// before cutoff, and sorts each bucket by date. Duplicate days keep the last
// occurrence in input order.
func groupByInstrument(series []domain.Observation, cutoff time.Time) map[string][]domain.Observation {
	byKey := make(map[domain.ObservationKey]int)
	groups := make(map[string][]domain.Observation)

	for _, o := range series {
		o.Date = domain.Day(o.Date)
		if o.Date.After(cutoff) {
			continue
		}
		k := o.Key()
		if i, ok := byKey[k]; ok {
			groups[o.Instrument][i] = o
			continue
		}
		byKey[k] = len(groups[o.Instrument])
		groups[o.Instrument] = append(groups[o.Instrument], o)
	}

	for inst := range groups {
		rows := groups[inst]
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Date.Before(rows[j].Date)
		})
	}
	return groups
}

// computeInstrument derives the metrics of one instrument from its rows,
// which must be non-empty, date-sorted and on or before cutoff.
func computeInstrument(rows []domain.Observation, cutoff time.Time) (instrumentMetrics, error) {
	n := len(rows)
	last := rows[n-1]

	im := instrumentMetrics{
		currentPrice:   last.Close.InexactFloat64(),
		latestTurnover: last.Turnover(),
	}

	if n >= TurnoverWindow {
		sum := 0.0
		for _, o := range rows[n-TurnoverWindow:] {
			sum += o.Turnover()
		}
		im.avgTurnover = sum / TurnoverWindow
	}
	if im.avgTurnover > 0 {
		im.turnoverRatio = im.latestTurnover / im.avgTurnover
	}

	yearStart := time.Date(cutoff.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	for _, o := range rows {
		if o.Date.Before(yearStart) {
			continue
		}
		base := o.Close.InexactFloat64()
		if base == 0 {
			return im, fmt.Errorf("ytd base %s: %w", o.Date.Format(domain.DateLayout), ErrZeroPrice)
		}
		im.ytdReturn = ptr((im.currentPrice - base) / base * 100)
		break
	}

	if n > FiveDayLag {
		base := rows[n-1-FiveDayLag].Close.InexactFloat64()
		if base == 0 {
			return im, fmt.Errorf("five-day base: %w", ErrZeroPrice)
		}
		im.fiveDayReturn = (im.currentPrice - base) / base * 100
	}

	return im, nil
}

// rank assigns the cross-sectional ranks and builds the output rows.
func rank(items []instrumentMetrics) []domain.RankedRow {
	n := len(items)
	if n == 0 {
		return []domain.RankedRow{}
	}

	ytd := make([]*float64, n)
	fiveDay := make([]*float64, n)
	ratio := make([]*float64, n)
	volume := make([]*float64, n)
	for i, im := range items {
		ytd[i] = im.ytdReturn
		fiveDay[i] = ptr(im.fiveDayReturn)
		ratio[i] = ptr(im.turnoverRatio)
		volume[i] = ptr(im.avgTurnover)
	}

	rankYTD := competitionRank(ytd, descending)
	rank5D := competitionRank(fiveDay, descending)
	rankRatio := competitionRank(ratio, descending)
	rankVolume := competitionRank(volume, descending)

	scores := make([]*float64, n)
	for i := range items {
		scores[i] = meanRank(rankYTD[i], rank5D[i], rankRatio[i], rankVolume[i])
	}
	overall := competitionRank(scores, ascending)

	rows := make([]domain.RankedRow, n)
	for i, im := range items {
		rows[i] = domain.RankedRow{
			Instrument:  im.meta.Instrument,
			DisplayName: im.meta.DisplayName,
			Tags:        append(domain.Tags(nil), im.meta.Tags...),
			Sector:      im.meta.Sector,
			Industry:    im.meta.Industry,
			SubIndustry: im.meta.SubIndustry,

			CurrentPrice:     im.currentPrice,
			LatestTurnover:   im.latestTurnover / domain.TurnoverUnit,
			AvgTurnover20D:   im.avgTurnover / domain.TurnoverUnit,
			TurnoverRatio:    im.turnoverRatio,
			YTDReturnPct:     im.ytdReturn,
			FiveDayReturnPct: im.fiveDayReturn,

			RankYTD:           rankYTD[i],
			Rank5D:            derefInt(rank5D[i]),
			RankTurnoverRatio: derefInt(rankRatio[i]),
			RankVolume:        derefInt(rankVolume[i]),
			OverallRank:       overall[i],
		}
	}

	domain.SortByOverallRank(rows)
	return rows
}
