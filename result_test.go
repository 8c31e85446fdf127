package rann

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	t.Run("prefills sentinels", func(t *testing.T) {
		r := newResult(3, 2, math.Inf(1))

		assert.Equal(t, 3, r.K())
		assert.Equal(t, 2, r.NumQueries())

		for q := range 2 {
			assert.Equal(t, []int{-1, -1, -1}, r.Indices(q))
			for _, d := range r.Distances(q) {
				assert.True(t, math.IsInf(d, 1))
			}
		}
	})

	t.Run("columns are views", func(t *testing.T) {
		r := newResult(2, 3, 0)

		r.Indices(1)[0] = 7
		r.Distances(1)[0] = 1.5

		assert.Equal(t, 7, r.indices[2])
		assert.Equal(t, 1.5, r.distances[2])
		assert.Equal(t, -1, r.Indices(0)[0])
		assert.Equal(t, -1, r.Indices(2)[1])
	})
}
