package rann

// Result holds the neighbor lists produced by a search, k entries per query
// in one flat allocation. Lists are sorted best-first under the searcher's
// SortPolicy. Slots that never received a candidate keep index -1 and the
// policy's worst distance sentinel, which happens when k exceeds the
// reference population.
type Result struct {
	k         int
	indices   []int
	distances []float64
}

func newResult(k, numQueries int, worst float64) *Result {
	r := &Result{
		k:         k,
		indices:   make([]int, k*numQueries),
		distances: make([]float64, k*numQueries),
	}
	for i := range r.indices {
		r.indices[i] = -1
	}
	for i := range r.distances {
		r.distances[i] = worst
	}
	return r
}

// K returns the number of neighbor slots per query.
func (r *Result) K() int { return r.k }

// NumQueries returns the number of queries answered.
func (r *Result) NumQueries() int { return len(r.indices) / r.k }

// Indices returns the neighbor indices for one query, best first. Indices
// refer to positions in the original reference ordering.
func (r *Result) Indices(query int) []int {
	return r.indices[query*r.k : (query+1)*r.k]
}

// Distances returns the neighbor distances for one query, best first.
func (r *Result) Distances(query int) []float64 {
	return r.distances[query*r.k : (query+1)*r.k]
}
