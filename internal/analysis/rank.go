package analysis

import (
	"sort"
)

// RankedSummary labels a summary, e.g. with the grid parameters that produced it.
type RankedSummary struct {
	Label string `json:"label"`
	Rank  int    `json:"rank"`
	Summary
}

// RankByReturn sorts descending by ReturnPct and assigns ranks starting at 1.
// Ties keep their input order.
func RankByReturn(in []RankedSummary) []RankedSummary {
	out := make([]RankedSummary, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReturnPct > out[j].ReturnPct
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
