package domain

import (
	"sort"
	"time"
)

// TurnoverUnit is the divisor applied to currency turnover in RankedRow.
// All turnover fields of RankedRow are in millions of the quote currency.
const TurnoverUnit = 1_000_000.0

// RankedRow is one instrument of a ranked table.
// Ranks are 1-based, 1 is best. Nil pointers mean "no data".
type RankedRow struct {
	Instrument  string
	DisplayName string
	Tags        Tags
	Sector      string
	Industry    string
	SubIndustry string

	CurrentPrice     float64  // latest close
	LatestTurnover   float64  // millions, most recent day
	AvgTurnover20D   float64  // millions, 0 if fewer than 20 rows
	TurnoverRatio    float64  // latest / 20-day average, 0 if average is 0
	YTDReturnPct     *float64 // nil if no observation in the year-to-date window
	FiveDayReturnPct float64  // 0 if fewer than 6 rows

	RankYTD           *int // nil when YTDReturnPct is nil
	Rank5D            int
	RankTurnoverRatio int
	RankVolume        int  // rank of AvgTurnover20D
	OverallRank       *int // nil when any component rank is nil
}

// Snapshot is a dated, materialized ranked table.
type Snapshot struct {
	ScanDate time.Time
	Rows     []RankedRow
}

// SortByOverallRank orders rows by overall rank ASC with unranked rows last.
// Equal ranks are ordered by instrument.
func SortByOverallRank(rows []RankedRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rows[i].OverallRank, rows[j].OverallRank
		switch {
		case ri == nil && rj == nil:
			return rows[i].Instrument < rows[j].Instrument
		case ri == nil:
			return false
		case rj == nil:
			return true
		case *ri != *rj:
			return *ri < *rj
		default:
			return rows[i].Instrument < rows[j].Instrument
		}
	})
}
