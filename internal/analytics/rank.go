package analytics

import "sort"

// DenseRank returns, for every element of values, the 1-based rank of its
// value among the sorted distinct values. Equal values share a rank and the
// ranks have no gaps, so re-ranking an already dense sequence preserves the
// relative order. The same ranking is used for course ordering and for the
// residual rankings of the anomaly classifier, where the dense convention
// decides which segments fall inside the top-K selection.
func DenseRank(values []float64) []int {
	if len(values) == 0 {
		return nil
	}

	distinct := make([]float64, 0, len(values))
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			distinct = append(distinct, v)
		}
	}
	sort.Float64s(distinct)

	rankOf := make(map[float64]int, len(distinct))
	for i, v := range distinct {
		rankOf[v] = i + 1
	}

	ranks := make([]int, len(values))
	for i, v := range values {
		ranks[i] = rankOf[v]
	}
	return ranks
}
