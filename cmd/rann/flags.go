package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/hupe1980/rann"
	"github.com/hupe1980/rann/metric"
	"github.com/hupe1980/rann/neighbor"
)

// buildFlags holds the searcher configuration shared by every command
// that builds a searcher from a reference set.
type buildFlags struct {
	mode              string
	tau               float64
	alpha             float64
	sampleAtLeaves    bool
	firstLeafExact    bool
	singleSampleLimit int
	metricName        string
	furthest          bool
	leafSize          int
	seed              int64
	parallelism       int
}

func (f *buildFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.mode, "mode", rann.ModeDualTree.String(), "search strategy: naive, single-tree or dual-tree")
	fs.Float64Var(&f.tau, "tau", 0.05, "rank target as a fraction of the reference set, 1 is exact")
	fs.Float64Var(&f.alpha, "alpha", 0.95, "probability that a neighbor meets the rank target")
	fs.BoolVar(&f.sampleAtLeaves, "sample-at-leaves", false, "sample inside reference leaves")
	fs.BoolVar(&f.firstLeafExact, "first-leaf-exact", false, "search each query's first leaf exactly")
	fs.IntVar(&f.singleSampleLimit, "single-sample-limit", 20, "largest sample asked of one subtree before descending")
	fs.StringVar(&f.metricName, "metric", metric.Euclidean{}.Name(), "distance metric: l2, l1, linf or minkowski-<p>")
	fs.BoolVar(&f.furthest, "furthest", false, "return the most distant neighbors instead of the closest")
	fs.IntVar(&f.leafSize, "leaf-size", 20, "maximum tree leaf size")
	fs.Int64Var(&f.seed, "seed", 0, "sampling seed, 0 seeds from the clock")
	fs.IntVar(&f.parallelism, "parallelism", 0, "concurrent query workers, 0 uses all CPUs")
}

func (f *buildFlags) options(logger *rann.Logger) ([]func(o *rann.Options), error) {
	mode, ok := rann.ModeByName(f.mode)
	if !ok {
		return nil, fmt.Errorf("unknown mode %q", f.mode)
	}

	m, err := metric.ByName(f.metricName)
	if err != nil {
		return nil, err
	}

	var policy neighbor.SortPolicy = neighbor.Nearest{}
	if f.furthest {
		policy = neighbor.Furthest{}
	}

	return []func(o *rann.Options){func(o *rann.Options) {
		o.Mode = mode
		o.Tau = f.tau
		o.Alpha = f.alpha
		o.SampleAtLeaves = f.sampleAtLeaves
		o.FirstLeafExact = f.firstLeafExact
		o.SingleSampleLimit = f.singleSampleLimit
		o.Metric = m
		o.SortPolicy = policy
		o.LeafSize = f.leafSize
		o.Seed = f.seed
		o.Parallelism = f.parallelism
		o.Logger = logger
	}}, nil
}
