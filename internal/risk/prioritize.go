package risk

import (
	"sort"

	"github.com/sells-group/stpa-cli/internal/model"
)

// Prioritize total-orders combinations in place: score descending, ties
// broken by canonical signature. Identical input always yields identical
// order; there is no randomness anywhere in the pipeline.
func Prioritize(list []model.CandidateCombination) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		return list[i].Signature() < list[j].Signature()
	})
}
