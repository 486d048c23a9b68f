package api

import (
	"math"
	"time"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/ranking"
)

// RankedRow is the wire form of domain.RankedRow. Undefined numbers are null.
// Turnover fields are in millions of the quote currency.
type RankedRow struct {
	Instrument        string   `json:"instrument"`
	DisplayName       string   `json:"display_name"`
	Tags              []string `json:"tags"`
	Sector            string   `json:"sector"`
	Industry          string   `json:"industry"`
	SubIndustry       string   `json:"sub_industry"`
	CurrentPrice      *float64 `json:"current_price"`
	LatestTurnover    *float64 `json:"latest_turnover_mm"`
	AvgTurnover20D    *float64 `json:"avg_turnover_20d_mm"`
	TurnoverRatio     *float64 `json:"turnover_ratio"`
	YTDReturnPct      *float64 `json:"ytd_return_pct"`
	FiveDayReturnPct  *float64 `json:"five_day_return_pct"`
	RankYTD           *int     `json:"rank_ytd"`
	Rank5D            int      `json:"rank_5d"`
	RankTurnoverRatio int      `json:"rank_turnover_ratio"`
	RankVolume        int      `json:"rank_volume"`
	OverallRank       *int     `json:"overall_rank"`
}

// TableResponse is a ranked table as of a date.
type TableResponse struct {
	AsOf string      `json:"as_of"`
	Rows []RankedRow `json:"rows"`
}

// LeaderboardRow is the wire form of ranking.LeaderboardRow.
type LeaderboardRow struct {
	Group             string   `json:"group"`
	Count             int      `json:"count"`
	YTDReturnPct      *float64 `json:"ytd_return_pct"`
	FiveDayReturnPct  *float64 `json:"five_day_return_pct"`
	TurnoverRatio     *float64 `json:"turnover_ratio"`
	LatestTurnover    *float64 `json:"latest_turnover_mm"`
	RankYTD           *int     `json:"rank_ytd"`
	Rank5D            int      `json:"rank_5d"`
	RankTurnoverRatio int      `json:"rank_turnover_ratio"`
	RankVolume        int      `json:"rank_volume"`
	OverallRank       *int     `json:"overall_rank"`
}

// LeaderboardResponse is a grouped leaderboard.
type LeaderboardResponse struct {
	AsOf    string           `json:"as_of"`
	GroupBy string           `json:"group_by"`
	Rows    []LeaderboardRow `json:"rows"`
}

// DatesResponse lists snapshot dates, most recent first.
type DatesResponse struct {
	Dates []string `json:"dates"`
}

// TagsRequest is the body of a tag edit.
type TagsRequest struct {
	Tags []string `json:"tags" validate:"max=32,dive,required,max=64"`
}

// TagsResponse echoes the normalized tags of an instrument.
type TagsResponse struct {
	Instrument string   `json:"instrument"`
	Tags       []string `json:"tags"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func finitePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return finite(*v)
}

func tagList(t domain.Tags) []string {
	if t == nil {
		return []string{}
	}
	return t
}

func newTable(asOf time.Time, rows []domain.RankedRow) TableResponse {
	out := TableResponse{AsOf: asOf.Format(domain.DateLayout), Rows: make([]RankedRow, 0, len(rows))}
	for _, r := range rows {
		out.Rows = append(out.Rows, RankedRow{
			Instrument:        r.Instrument,
			DisplayName:       r.DisplayName,
			Tags:              tagList(r.Tags),
			Sector:            r.Sector,
			Industry:          r.Industry,
			SubIndustry:       r.SubIndustry,
			CurrentPrice:      finite(r.CurrentPrice),
			LatestTurnover:    finite(r.LatestTurnover),
			AvgTurnover20D:    finite(r.AvgTurnover20D),
			TurnoverRatio:     finite(r.TurnoverRatio),
			YTDReturnPct:      finitePtr(r.YTDReturnPct),
			FiveDayReturnPct:  finite(r.FiveDayReturnPct),
			RankYTD:           r.RankYTD,
			Rank5D:            r.Rank5D,
			RankTurnoverRatio: r.RankTurnoverRatio,
			RankVolume:        r.RankVolume,
			OverallRank:       r.OverallRank,
		})
	}
	return out
}

func newLeaderboard(asOf time.Time, by ranking.GroupBy, rows []ranking.LeaderboardRow) LeaderboardResponse {
	out := LeaderboardResponse{
		AsOf:    asOf.Format(domain.DateLayout),
		GroupBy: string(by),
		Rows:    make([]LeaderboardRow, 0, len(rows)),
	}
	for _, r := range rows {
		out.Rows = append(out.Rows, LeaderboardRow{
			Group:             r.Group,
			Count:             r.Count,
			YTDReturnPct:      finitePtr(r.YTDReturnPct),
			FiveDayReturnPct:  finite(r.FiveDayReturnPct),
			TurnoverRatio:     finite(r.TurnoverRatio),
			LatestTurnover:    finite(r.LatestTurnover),
			RankYTD:           r.RankYTD,
			Rank5D:            r.Rank5D,
			RankTurnoverRatio: r.RankTurnoverRatio,
			RankVolume:        r.RankVolume,
			OverallRank:       r.OverallRank,
		})
	}
	return out
}
