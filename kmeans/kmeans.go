package kmeans

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/hupe1980/rann/matrix"
	"github.com/hupe1980/rann/metric"
)

var (
	// ErrEmptyDataset is returned when the dataset has no points.
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrInvalidK is returned when k is outside [1, points].
	ErrInvalidK = errors.New("k must be between 1 and the number of points")
)

// Options configures Cluster.
type Options struct {
	// MaxIterations caps Lloyd's iterations. Values below 1 fall back
	// to the default.
	MaxIterations int

	// Metric measures distance between points and centroids.
	Metric metric.Metric

	// Policy repairs clusters left empty by an update step. Nil uses a
	// fresh MaxVariance. Policies carry per-run caches, so a policy
	// value must not be shared between concurrent Cluster calls.
	Policy EmptyClusterPolicy

	// Seed fixes the random source used for initialization and random
	// reseeding. Zero seeds from the clock.
	Seed int64
}

// DefaultOptions holds the default clustering configuration.
var DefaultOptions = Options{
	MaxIterations: 1000,
	Metric:        metric.Euclidean{},
}

func resolveOptions(optFns []func(o *Options)) Options {
	opts := DefaultOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}

	if opts.MaxIterations < 1 {
		opts.MaxIterations = DefaultOptions.MaxIterations
	}
	if opts.Metric == nil {
		opts.Metric = metric.Euclidean{}
	}
	if opts.Policy == nil {
		opts.Policy = &MaxVariance{}
	}

	return opts
}

// Result holds a clustering.
type Result struct {
	// Centroids stores the cluster centers, one column per cluster.
	Centroids *matrix.Matrix

	// Assignments maps every point to its cluster.
	Assignments []int

	// Counts holds the population of every cluster.
	Counts []int

	// Iterations is the number of Lloyd's iterations run.
	Iterations int
}

// Assign returns the cluster whose centroid is closest to point, and
// the distance to it.
func (r *Result) Assign(point []float64, m metric.Metric) (int, float64) {
	best := -1
	bestDist := math.Inf(1)

	for c := range r.Centroids.Cols() {
		if d := m.Evaluate(point, r.Centroids.Col(c)); d < bestDist {
			bestDist = d
			best = c
		}
	}

	return best, bestDist
}

// Cluster partitions the points of data into k clusters. Centroids
// initialize from k distinct random points and iterate until the
// assignment step reaches a fixpoint or MaxIterations is hit.
func Cluster(ctx context.Context, data *matrix.Matrix, k int, optFns ...func(o *Options)) (*Result, error) {
	opts := resolveOptions(optFns)

	if data == nil || data.Cols() == 0 {
		return nil, ErrEmptyDataset
	}

	n := data.Cols()
	dim := data.Rows()
	if k < 1 || k > n {
		return nil, ErrInvalidK
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	centroids := make([][]float64, k)
	sums := make([][]float64, k)
	perm := rng.Perm(n)
	for c := range k {
		centroids[c] = make([]float64, dim)
		sums[c] = make([]float64, dim)
		copy(centroids[c], data.Col(perm[c]))
	}

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}
	counts := make([]int, k)

	iterations := 0
	for iter := range opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iterations = iter + 1

		changed := false
		for i := range n {
			point := data.Col(i)

			best := -1
			bestDist := math.Inf(1)
			for c := range k {
				if d := opts.Metric.Evaluate(point, centroids[c]); d < bestDist {
					bestDist = d
					best = c
				}
			}

			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if !changed {
			break
		}

		for c := range k {
			for d := range sums[c] {
				sums[c][d] = 0
			}
			counts[c] = 0
		}
		for i := range n {
			floats.Add(sums[assignments[i]], data.Col(i))
			counts[assignments[i]]++
		}
		for c := range k {
			if counts[c] > 0 {
				copy(centroids[c], sums[c])
				floats.Scale(1/float64(counts[c]), centroids[c])
			}
		}

		state := &ClusterState{
			Data:        data,
			Centroids:   centroids,
			Assignments: assignments,
			Counts:      counts,
			Metric:      opts.Metric,
			Rand:        rng,
			Iteration:   iter,
		}
		for c := range k {
			if counts[c] == 0 {
				if _, err := opts.Policy.EmptyCluster(state, c); err != nil {
					return nil, err
				}
			}
		}
	}

	centroidMatrix, err := matrix.FromPoints(centroids)
	if err != nil {
		return nil, err
	}

	return &Result{
		Centroids:   centroidMatrix,
		Assignments: assignments,
		Counts:      counts,
		Iterations:  iterations,
	}, nil
}
