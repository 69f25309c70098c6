package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDenseRank(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected []int
	}{
		{"empty", nil, nil},
		{"single value", []float64{5}, []int{1}},
		{"already sorted", []float64{1, 2, 3}, []int{1, 2, 3}},
		{"unsorted", []float64{30, 10, 20}, []int{3, 1, 2}},
		{"ties share rank", []float64{10, 20, 10, 30}, []int{1, 2, 1, 3}},
		{"gaps collapse", []float64{100, 500, 900}, []int{1, 2, 3}},
		{"negatives", []float64{-1.5, 0, -1.5, 2.25}, []int{1, 2, 1, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DenseRank(tt.values))
		})
	}
}

// Dense ranking is stable under re-ranking: ranking an already dense
// sequence returns the same sequence.
func TestDenseRankIdempotent(t *testing.T) {
	values := []float64{7, 3, 3, 12, 7, 0, 12, 12}

	first := DenseRank(values)

	asFloats := make([]float64, len(first))
	for i, r := range first {
		asFloats[i] = float64(r)
	}
	second := DenseRank(asFloats)

	assert.Equal(t, first, second)
}
