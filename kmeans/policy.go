package kmeans

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/hupe1980/rann/matrix"
	"github.com/hupe1980/rann/metric"
)

// ClusterState exposes the working state of a Lloyd's iteration to an
// EmptyClusterPolicy. Centroids, Assignments and Counts may be mutated
// in place.
type ClusterState struct {
	Data        *matrix.Matrix
	Centroids   [][]float64
	Assignments []int
	Counts      []int
	Metric      metric.Metric
	Rand        *rand.Rand

	// Iteration identifies the Lloyd's iteration, letting policies
	// cache work across repairs within the same iteration.
	Iteration int
}

// EmptyClusterPolicy repairs a cluster that ended an update step with
// no members. Implementations return how many points they reassigned.
type EmptyClusterPolicy interface {
	EmptyCluster(state *ClusterState, empty int) (int, error)
}

// MaxVariance reseeds an empty cluster from the point furthest away
// from the centroid of the highest-variance cluster. The donor
// centroid, the counts and the cached variances are patched
// incrementally, so repairing several empty clusters in one iteration
// computes the per-point variances only once.
type MaxVariance struct {
	iteration int
	variances []float64
}

func (p *MaxVariance) EmptyCluster(state *ClusterState, empty int) (int, error) {
	if p.variances == nil || p.iteration != state.Iteration || len(p.variances) != len(state.Counts) {
		p.precalculate(state)
	}
	p.iteration = state.Iteration

	// Only clusters with at least two points can donate. One always
	// exists: n >= k and at least one cluster is empty.
	donor := -1
	for c, v := range p.variances {
		if state.Counts[c] < 2 {
			continue
		}
		if donor == -1 || v > p.variances[donor] {
			donor = c
		}
	}

	furthest := -1
	maxDist := -1.0
	for i := range state.Data.Cols() {
		if state.Assignments[i] != donor {
			continue
		}
		d := state.Metric.Evaluate(state.Data.Col(i), state.Centroids[donor])
		if d*d > maxDist {
			maxDist = d * d
			furthest = i
		}
	}

	point := state.Data.Col(furthest)
	count := float64(state.Counts[donor])

	// Remove the point from the donor mean without a full recompute.
	floats.Scale(count/(count-1), state.Centroids[donor])
	floats.AddScaled(state.Centroids[donor], -1/(count-1), point)

	state.Counts[donor]--
	state.Counts[empty]++
	copy(state.Centroids[empty], point)
	state.Assignments[furthest] = empty

	p.variances[empty] = 0
	remaining := float64(state.Counts[donor])
	if state.Counts[donor] <= 1 {
		p.variances[donor] = 0
	} else {
		p.variances[donor] = ((remaining+1)*p.variances[donor] - maxDist) / remaining
	}

	return 1, nil
}

// precalculate computes the mean squared distance of every cluster's
// points to its centroid. Clusters with fewer than two points get zero.
func (p *MaxVariance) precalculate(state *ClusterState) {
	p.variances = make([]float64, len(state.Counts))

	for i := range state.Data.Cols() {
		c := state.Assignments[i]
		if c < 0 {
			continue
		}
		d := state.Metric.Evaluate(state.Data.Col(i), state.Centroids[c])
		p.variances[c] += d * d
	}

	for c, count := range state.Counts {
		if count <= 1 {
			p.variances[c] = 0
		} else {
			p.variances[c] /= float64(count)
		}
	}
}

// RandomReinit copies a random point over the empty cluster's centroid
// and leaves the reassignment to the next iteration. Cheap, but the
// cluster can still converge empty.
type RandomReinit struct{}

func (RandomReinit) EmptyCluster(state *ClusterState, empty int) (int, error) {
	idx := state.Rand.Intn(state.Data.Cols())
	copy(state.Centroids[empty], state.Data.Col(idx))
	return 0, nil
}
