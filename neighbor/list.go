package neighbor

// List is a fixed-capacity candidate list over caller-provided backing
// slices, kept sorted best-first under a SortPolicy. The search engine backs
// every query's list directly with one column of its output buffers, so
// insertions land in the final result without a copy-out pass.
//
// Both slices must have the same length k and start prefilled with the
// policy's worst sentinel and an invalid index.
type List struct {
	policy    SortPolicy
	distances []float64
	indices   []int
}

// NewList wraps the given backing slices. The slices are mutated in place.
func NewList(policy SortPolicy, distances []float64, indices []int) List {
	if len(distances) != len(indices) {
		panic("neighbor: distance and index slices differ in length")
	}

	return List{policy: policy, distances: distances, indices: indices}
}

// K returns the capacity.
func (l List) K() int { return len(l.distances) }

// WorstDistance returns the distance of the last slot, i.e. the k-th best
// candidate seen so far or the worst sentinel while the list is unfilled.
func (l List) WorstDistance() float64 {
	return l.distances[len(l.distances)-1]
}

// Distances returns the backing distance slice, best first.
func (l List) Distances() []float64 { return l.distances }

// Indices returns the backing index slice, best first.
func (l List) Indices() []int { return l.indices }

// TryInsert offers a candidate. It is accepted only if the distance is a
// strict improvement over the current worst slot; the worst slot is then
// evicted and the candidate shifted into sorted position. Ties keep the
// earlier-inserted candidate in front, which makes output deterministic for
// equal distances.
func (l List) TryInsert(distance float64, refIndex int) bool {
	k := len(l.distances)
	if !l.policy.IsBetter(distance, l.distances[k-1]) {
		return false
	}

	pos := k - 1
	for pos > 0 && l.policy.IsBetter(distance, l.distances[pos-1]) {
		pos--
	}

	copy(l.distances[pos+1:], l.distances[pos:k-1])
	copy(l.indices[pos+1:], l.indices[pos:k-1])

	l.distances[pos] = distance
	l.indices[pos] = refIndex

	return true
}
