package ranking

import (
	"math"
	"sort"
)

// order selects the direction of a ranking.
type order int

const (
	descending order = iota // highest value = rank 1
	ascending               // lowest value = rank 1
)

// competitionRank assigns 1-based "min" ranks: tied values share the lowest
// rank among them and the next distinct value skips accordingly (1, 1, 3).
// Nil and NaN values are left unranked.
func competitionRank(values []*float64, dir order) []*int {
	ranks := make([]*int, len(values))

	idx := make([]int, 0, len(values))
	for i, v := range values {
		if v != nil && !math.IsNaN(*v) {
			idx = append(idx, i)
		}
	}

	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := *values[idx[a]], *values[idx[b]]
		if dir == descending {
			return va > vb
		}
		return va < vb
	})

	rank := 0
	for pos, i := range idx {
		if pos == 0 || *values[i] != *values[idx[pos-1]] {
			rank = pos + 1
		}
		r := rank
		ranks[i] = &r
	}
	return ranks
}

// meanRank averages the component ranks. Returns nil if any rank is missing.
func meanRank(ranks ...*int) *float64 {
	sum := 0
	for _, r := range ranks {
		if r == nil {
			return nil
		}
		sum += *r
	}
	score := float64(sum) / float64(len(ranks))
	return &score
}

func ptr(v float64) *float64 {
	return &v
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
