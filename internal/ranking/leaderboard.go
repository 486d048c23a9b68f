package ranking

import (
	"fmt"
	"sort"

	"equity-monitor/internal/domain"
)

// GroupBy selects the column a leaderboard aggregates on.
type GroupBy string

// Supported leaderboard groupings.
const (
	GroupTheme       GroupBy = "theme"
	GroupSector      GroupBy = "sector"
	GroupIndustry    GroupBy = "industry"
	GroupSubIndustry GroupBy = "sub_industry"
)

// ParseGroupBy validates a grouping name.
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(s); g {
	case GroupTheme, GroupSector, GroupIndustry, GroupSubIndustry:
		return g, nil
	default:
		return "", fmt.Errorf("unknown grouping %q", s)
	}
}

// LeaderboardRow aggregates the ranked rows of one group.
// Metrics are means over members; turnover is in millions.
type LeaderboardRow struct {
	Group            string
	Count            int
	YTDReturnPct     *float64 // mean over members with YTD data, nil if none
	FiveDayReturnPct float64
	TurnoverRatio    float64
	LatestTurnover   float64

	RankYTD           *int
	Rank5D            int
	RankTurnoverRatio int
	RankVolume        int // rank of mean LatestTurnover
	OverallRank       *int
}

// Leaderboard groups ranked rows and ranks the groups with the same
// competition scheme as instruments. An instrument with several themes
// contributes to each of them; rows with an empty group value are ignored.
func Leaderboard(rows []domain.RankedRow, by GroupBy) []LeaderboardRow {
	type acc struct {
		count    int
		ytdSum   float64
		ytdCount int
		fiveDay  float64
		ratio    float64
		turnover float64
	}

	groups := make(map[string]*acc)
	for _, r := range rows {
		for _, g := range groupKeys(r, by) {
			a, ok := groups[g]
			if !ok {
				a = &acc{}
				groups[g] = a
			}
			a.count++
			if r.YTDReturnPct != nil {
				a.ytdSum += *r.YTDReturnPct
				a.ytdCount++
			}
			a.fiveDay += r.FiveDayReturnPct
			a.ratio += r.TurnoverRatio
			a.turnover += r.LatestTurnover
		}
	}

	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, g)
	}
	sort.Strings(names)

	board := make([]LeaderboardRow, len(names))
	ytd := make([]*float64, len(names))
	fiveDay := make([]*float64, len(names))
	ratio := make([]*float64, len(names))
	volume := make([]*float64, len(names))
	for i, g := range names {
		a := groups[g]
		n := float64(a.count)
		board[i] = LeaderboardRow{
			Group:            g,
			Count:            a.count,
			FiveDayReturnPct: a.fiveDay / n,
			TurnoverRatio:    a.ratio / n,
			LatestTurnover:   a.turnover / n,
		}
		if a.ytdCount > 0 {
			board[i].YTDReturnPct = ptr(a.ytdSum / float64(a.ytdCount))
		}
		ytd[i] = board[i].YTDReturnPct
		fiveDay[i] = ptr(board[i].FiveDayReturnPct)
		ratio[i] = ptr(board[i].TurnoverRatio)
		volume[i] = ptr(board[i].LatestTurnover)
	}

	rankYTD := competitionRank(ytd, descending)
	rank5D := competitionRank(fiveDay, descending)
	rankRatio := competitionRank(ratio, descending)
	rankVolume := competitionRank(volume, descending)

	scores := make([]*float64, len(names))
	for i := range board {
		board[i].RankYTD = rankYTD[i]
		board[i].Rank5D = derefInt(rank5D[i])
		board[i].RankTurnoverRatio = derefInt(rankRatio[i])
		board[i].RankVolume = derefInt(rankVolume[i])
		scores[i] = meanRank(rankYTD[i], rank5D[i], rankRatio[i], rankVolume[i])
	}
	overall := competitionRank(scores, ascending)
	for i := range board {
		board[i].OverallRank = overall[i]
	}

	sort.SliceStable(board, func(i, j int) bool {
		ri, rj := board[i].OverallRank, board[j].OverallRank
		if ri == nil || rj == nil {
			return ri != nil && rj == nil
		}
		return *ri < *rj
	})
	return board
}

func groupKeys(r domain.RankedRow, by GroupBy) []string {
	var v string
	switch by {
	case GroupTheme:
		return r.Tags
	case GroupSector:
		v = r.Sector
	case GroupIndustry:
		v = r.Industry
	case GroupSubIndustry:
		v = r.SubIndustry
	}
	if v == "" {
		return nil
	}
	return []string{v}
}
