package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/rann/matrix"
	"github.com/hupe1980/rann/metric"
	"github.com/hupe1980/rann/neighbor"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float64 in a loop).
func (r *RNG) FillUniform(dst []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float64()
	}
}

// UniformPoints generates random points with coordinates in [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformPoints(num, dim int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*dim)
	points := make([][]float64, num)

	for i := range num {
		p := data[i*dim : (i+1)*dim]
		for j := range p {
			p[j] = r.rand.Float64()
		}
		points[i] = p
	}

	return points
}

// GaussianPoints generates random points with coordinates from a standard
// normal distribution.
func (r *RNG) GaussianPoints(num, dim int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*dim)
	points := make([][]float64, num)

	for i := range num {
		p := data[i*dim : (i+1)*dim]
		for j := range p {
			p[j] = r.rand.NormFloat64()
		}
		points[i] = p
	}

	return points
}

// ClusteredPoints generates points clustered around random centroids.
// Useful for testing tree quality on non-uniform data.
func (r *RNG) ClusteredPoints(num, dim, clusters int, spread float64) [][]float64 {
	centroids := r.GaussianPoints(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*dim)
	points := make([][]float64, num)

	for i := range num {
		centroid := centroids[i%clusters]
		p := data[i*dim : (i+1)*dim]

		for j := range dim {
			p[j] = centroid[j] + r.rand.NormFloat64()*spread
		}
		points[i] = p
	}

	return points
}

// UniformMatrix generates a num-point, dim-dimensional dataset with
// coordinates in [0, 1).
func (r *RNG) UniformMatrix(num, dim int) *matrix.Matrix {
	m, err := matrix.FromPoints(r.UniformPoints(num, dim))
	if err != nil {
		panic(err)
	}
	return m
}

// GaussianMatrix generates a num-point, dim-dimensional dataset with
// standard normal coordinates.
func (r *RNG) GaussianMatrix(num, dim int) *matrix.Matrix {
	m, err := matrix.FromPoints(r.GaussianPoints(num, dim))
	if err != nil {
		panic(err)
	}
	return m
}

// BruteForce computes exact neighbors for every query by scanning the
// whole reference set. Candidate ordering and tie handling go through the
// same insertion logic the searchers use, so results are directly
// comparable. With sameSet a query never matches itself.
func BruteForce(refs, queries *matrix.Matrix, k int, m metric.Metric, policy neighbor.SortPolicy, sameSet bool) ([][]int, [][]float64) {
	nq := queries.Cols()
	indices := make([][]int, nq)
	distances := make([][]float64, nq)

	for q := range nq {
		dist := make([]float64, k)
		idx := make([]int, k)
		for i := range k {
			dist[i] = policy.WorstDistance()
			idx[i] = -1
		}

		list := neighbor.NewList(policy, dist, idx)
		for ref := range refs.Cols() {
			if sameSet && ref == q {
				continue
			}
			list.TryInsert(m.Evaluate(queries.Col(q), refs.Col(ref)), ref)
		}

		indices[q] = idx
		distances[q] = dist
	}

	return indices, distances
}

// RankOf returns the 1-based rank of reference point ref for the given
// query: one more than the number of strictly better reference points.
// Tied points share the better rank. skip names a reference index to
// leave out of the ranking, or -1.
func RankOf(refs *matrix.Matrix, query []float64, ref int, m metric.Metric, policy neighbor.SortPolicy, skip int) int {
	d := m.Evaluate(query, refs.Col(ref))

	rank := 1
	for i := range refs.Cols() {
		if i == ref || i == skip {
			continue
		}
		if policy.IsBetter(m.Evaluate(query, refs.Col(i)), d) {
			rank++
		}
	}

	return rank
}

// Recall returns the fraction of exact neighbor indices also present in
// the approximate result. Sentinel indices below zero never count.
func Recall(exact, approximate []int) float64 {
	if len(exact) == 0 {
		return 1.0
	}

	truth := make(map[int]struct{}, len(exact))
	for _, id := range exact {
		if id >= 0 {
			truth[id] = struct{}{}
		}
	}
	if len(truth) == 0 {
		return 1.0
	}

	hits := 0
	for _, id := range approximate {
		if _, ok := truth[id]; ok {
			hits++
		}
	}

	return float64(hits) / float64(len(truth))
}
