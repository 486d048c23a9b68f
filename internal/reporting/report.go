package reporting

import (
	"math"
	"strconv"
	"time"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/ranking"
)

// Report sources.
const (
	SourceSnapshot = "snapshot"
	SourceLive     = "live"
)

// Report is a ranked table plus optional group leaderboards.
type Report struct {
	// Metadata
	Title       string
	AsOf        time.Time // scan date of a snapshot, or the as-of date of a live table
	Source      string    // SourceSnapshot or SourceLive
	GeneratedAt time.Time

	Summary Summary

	// Ranked rows, ordered by overall rank with unranked rows last
	Rows []domain.RankedRow

	Leaderboards []LeaderboardSection
}

// Summary contains table-level counts.
type Summary struct {
	Instruments int
	Ranked      int // rows with an overall rank
	Unranked    int // rows missing YTD data
}

// LeaderboardSection is one grouped leaderboard.
type LeaderboardSection struct {
	GroupBy ranking.GroupBy
	Rows    []ranking.LeaderboardRow
}

// column renders one field of a ranked row.
type column struct {
	header string
	value  func(r domain.RankedRow) string
}

// rankColumns is the shared column layout of every rendering.
var rankColumns = []column{
	{"overall_rank", func(r domain.RankedRow) string { return intPtr(r.OverallRank) }},
	{"instrument", func(r domain.RankedRow) string { return r.Instrument }},
	{"display_name", func(r domain.RankedRow) string { return r.DisplayName }},
	{"tags", func(r domain.RankedRow) string { return r.Tags.String() }},
	{"sector", func(r domain.RankedRow) string { return r.Sector }},
	{"industry", func(r domain.RankedRow) string { return r.Industry }},
	{"sub_industry", func(r domain.RankedRow) string { return r.SubIndustry }},
	{"current_price", func(r domain.RankedRow) string { return num(r.CurrentPrice, 2) }},
	{"latest_turnover_mm", func(r domain.RankedRow) string { return num(r.LatestTurnover, 2) }},
	{"avg_turnover_20d_mm", func(r domain.RankedRow) string { return num(r.AvgTurnover20D, 2) }},
	{"turnover_ratio", func(r domain.RankedRow) string { return num(r.TurnoverRatio, 2) }},
	{"ytd_return_pct", func(r domain.RankedRow) string { return numPtr(r.YTDReturnPct, 2) }},
	{"five_day_return_pct", func(r domain.RankedRow) string { return num(r.FiveDayReturnPct, 2) }},
	{"rank_ytd", func(r domain.RankedRow) string { return intPtr(r.RankYTD) }},
	{"rank_5d", func(r domain.RankedRow) string { return strconv.Itoa(r.Rank5D) }},
	{"rank_turnover_ratio", func(r domain.RankedRow) string { return strconv.Itoa(r.RankTurnoverRatio) }},
	{"rank_volume", func(r domain.RankedRow) string { return strconv.Itoa(r.RankVolume) }},
}

// leaderboardHeaders matches leaderboardRecord.
var leaderboardHeaders = []string{
	"overall_rank", "group", "count",
	"ytd_return_pct", "five_day_return_pct", "turnover_ratio", "latest_turnover_mm",
	"rank_ytd", "rank_5d", "rank_turnover_ratio", "rank_volume",
}

func leaderboardRecord(r ranking.LeaderboardRow) []string {
	return []string{
		intPtr(r.OverallRank),
		r.Group,
		strconv.Itoa(r.Count),
		numPtr(r.YTDReturnPct, 2),
		num(r.FiveDayReturnPct, 2),
		num(r.TurnoverRatio, 2),
		num(r.LatestTurnover, 2),
		intPtr(r.RankYTD),
		strconv.Itoa(r.Rank5D),
		strconv.Itoa(r.RankTurnoverRatio),
		strconv.Itoa(r.RankVolume),
	}
}

// num formats v with prec decimals; undefined values render empty.
func num(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func numPtr(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return num(*v, prec)
}

func intPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
