package graph

import (
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

const suggestionThreshold float64 = 0.5

// closestName returns the candidate most similar to name, or an empty string if none
// of them is similar enough to be worth suggesting
func closestName(name string, candidates []string) string {
	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = false

	best, bestScore := "", suggestionThreshold

	for _, c := range candidates {
		if score := strutil.Similarity(name, c, lev); score >= bestScore {
			best, bestScore = c, score
		}
	}

	return best
}
