// internal/detect/ranker.go
package detect

import (
	"sort"

	"github.com/crawlkit/careerscout/api/schemas"
)

// Rank orders candidates for click priority: score descending, then larger
// bounding box, then the one seen higher up the page. The sort is stable so
// detection order breaks any remaining ties deterministically.
func Rank(candidates []schemas.Candidate) []schemas.Candidate {
	ranked := make([]schemas.Candidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if aa, ba := a.Box.Area(), b.Box.Area(); aa != ba {
			return aa > ba
		}
		return a.ScrollPosition < b.ScrollPosition
	})
	return ranked
}
