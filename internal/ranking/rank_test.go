package ranking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ranksOf(t *testing.T, got []*int) []int {
	t.Helper()
	out := make([]int, len(got))
	for i, r := range got {
		if r == nil {
			out[i] = 0
			continue
		}
		out[i] = *r
	}
	return out
}

func TestCompetitionRank_DescendingTies(t *testing.T) {
	got := competitionRank([]*float64{ptr(10), ptr(10), ptr(5)}, descending)
	assert.Equal(t, []int{1, 1, 3}, ranksOf(t, got))
}

func TestCompetitionRank_Ascending(t *testing.T) {
	got := competitionRank([]*float64{ptr(2.5), ptr(1.0), ptr(2.5), ptr(4)}, ascending)
	assert.Equal(t, []int{2, 1, 2, 4}, ranksOf(t, got))
}

func TestCompetitionRank_SkipsMissing(t *testing.T) {
	nan := math.NaN()
	got := competitionRank([]*float64{nil, ptr(3), &nan, ptr(7)}, descending)
	require.Len(t, got, 4)
	assert.Nil(t, got[0])
	assert.Nil(t, got[2])
	assert.Equal(t, 2, *got[1])
	assert.Equal(t, 1, *got[3])
}

func TestCompetitionRank_Empty(t *testing.T) {
	assert.Empty(t, competitionRank(nil, descending))
}

func TestMeanRank(t *testing.T) {
	one, two, three := 1, 2, 3
	score := meanRank(&one, &two, &three, &two)
	require.NotNil(t, score)
	assert.Equal(t, 2.0, *score)
	assert.Nil(t, meanRank(&one, nil))
}
