package rann

import (
	"github.com/hupe1980/rann/matrix"
	"github.com/hupe1980/rann/metric"
	"github.com/hupe1980/rann/neighbor"
	"github.com/hupe1980/rann/tree"
	"github.com/hupe1980/rann/tree/kdtree"
)

// Options configures a Searcher.
type Options struct {
	// Mode selects the search strategy.
	Mode Mode

	// Tau is the rank approximation target as a fraction of the
	// reference set: returned neighbors should rank within the best
	// ceil(Tau*n) references for their query. Must be in (0, 1].
	// Tau of 1 requests exact search.
	Tau float64

	// Alpha is the required probability that a returned neighbor meets
	// the Tau rank target. Values of 1 and above disable approximation
	// and fall back to exhaustive search.
	Alpha float64

	// SampleAtLeaves enables sampling inside reference leaves for extra
	// speedup at some accuracy cost.
	SampleAtLeaves bool

	// FirstLeafExact forces the first reference leaf reached by each
	// query down an exact path before any sampling happens, trading
	// speed for a better-than-guaranteed hit rate on the top ranks.
	FirstLeafExact bool

	// SingleSampleLimit caps how many samples a single reference subtree
	// may be asked for before the search descends into it instead.
	SingleSampleLimit int

	// Metric measures distance between points. Tree modes additionally
	// require a metric that can bound distances against rectangles.
	Metric metric.Metric

	// SortPolicy orders candidates. Nearest returns the closest
	// neighbors, Furthest the most distant ones.
	SortPolicy neighbor.SortPolicy

	// LeafSize is the maximum leaf size of trees built by the searcher.
	LeafSize int

	// Seed fixes the sampling random source. Zero seeds from the clock;
	// any other value makes searches reproducible.
	Seed int64

	// Parallelism caps the number of concurrent workers answering
	// queries in naive and single-tree modes. Zero means GOMAXPROCS.
	// Dual-tree traversal is sequential regardless.
	Parallelism int

	// TreeBuilder overrides how reference and query trees are built.
	// Nil builds kd-trees from LeafSize and Metric.
	TreeBuilder tree.Builder

	// Logger receives structured operation logs. Nil disables logging.
	Logger *Logger

	// Metrics receives operational metrics. Nil disables collection.
	Metrics MetricsCollector
}

// DefaultOptions holds the default searcher configuration.
var DefaultOptions = Options{
	Mode:              ModeDualTree,
	Tau:               0.05,
	Alpha:             0.95,
	SampleAtLeaves:    false,
	FirstLeafExact:    false,
	SingleSampleLimit: 20,
	Metric:            metric.Euclidean{},
	SortPolicy:        neighbor.Nearest{},
	LeafSize:          20,
}

// WithMode sets the search strategy.
func WithMode(mode Mode) func(*Options) {
	return func(o *Options) {
		o.Mode = mode
	}
}

// WithTau sets the rank approximation target fraction.
func WithTau(tau float64) func(*Options) {
	return func(o *Options) {
		o.Tau = tau
	}
}

// WithAlpha sets the required success probability.
func WithAlpha(alpha float64) func(*Options) {
	return func(o *Options) {
		o.Alpha = alpha
	}
}

// WithSampleAtLeaves enables sampling inside reference leaves.
func WithSampleAtLeaves(sample bool) func(*Options) {
	return func(o *Options) {
		o.SampleAtLeaves = sample
	}
}

// WithFirstLeafExact forces an exact visit of each query's first leaf.
func WithFirstLeafExact(exact bool) func(*Options) {
	return func(o *Options) {
		o.FirstLeafExact = exact
	}
}

// WithSingleSampleLimit caps the samples drawn from one subtree per visit.
func WithSingleSampleLimit(limit int) func(*Options) {
	return func(o *Options) {
		o.SingleSampleLimit = limit
	}
}

// WithMetric sets the distance metric.
func WithMetric(m metric.Metric) func(*Options) {
	return func(o *Options) {
		o.Metric = m
	}
}

// WithSortPolicy sets the candidate ordering.
func WithSortPolicy(p neighbor.SortPolicy) func(*Options) {
	return func(o *Options) {
		o.SortPolicy = p
	}
}

// WithLeafSize sets the maximum leaf size of built trees.
func WithLeafSize(size int) func(*Options) {
	return func(o *Options) {
		o.LeafSize = size
	}
}

// WithSeed fixes the sampling random source for reproducible searches.
func WithSeed(seed int64) func(*Options) {
	return func(o *Options) {
		o.Seed = seed
	}
}

// WithParallelism caps the concurrent query workers.
func WithParallelism(n int) func(*Options) {
	return func(o *Options) {
		o.Parallelism = n
	}
}

// WithTreeBuilder overrides how reference and query trees are built.
func WithTreeBuilder(builder tree.Builder) func(*Options) {
	return func(o *Options) {
		o.TreeBuilder = builder
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *Logger) func(*Options) {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector MetricsCollector) func(*Options) {
	return func(o *Options) {
		o.Metrics = collector
	}
}

func resolveOptions(optFns []func(o *Options)) Options {
	opts := DefaultOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}

	if opts.Metric == nil {
		opts.Metric = metric.Euclidean{}
	}
	if opts.SortPolicy == nil {
		opts.SortPolicy = neighbor.Nearest{}
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetricsCollector{}
	}

	return opts
}

func (o *Options) validate() error {
	if !o.Mode.valid() {
		return &ErrInvalidParameter{Name: "Mode", Value: o.Mode, cause: ErrInvalidMode}
	}
	if o.Tau <= 0 || o.Tau > 1 {
		return &ErrInvalidParameter{Name: "Tau", Value: o.Tau}
	}
	if o.Alpha < 0 {
		return &ErrInvalidParameter{Name: "Alpha", Value: o.Alpha}
	}
	if o.SingleSampleLimit < 1 {
		return &ErrInvalidParameter{Name: "SingleSampleLimit", Value: o.SingleSampleLimit}
	}
	if o.LeafSize < 1 {
		return &ErrInvalidParameter{Name: "LeafSize", Value: o.LeafSize}
	}
	if o.Parallelism < 0 {
		return &ErrInvalidParameter{Name: "Parallelism", Value: o.Parallelism}
	}
	return nil
}

// treeBuilder returns the configured builder, or a kd-tree builder wired to
// the configured leaf size and metric.
func (o *Options) treeBuilder() tree.Builder {
	if o.TreeBuilder != nil {
		return o.TreeBuilder
	}

	leafSize := o.LeafSize
	m := o.Metric
	return func(data *matrix.Matrix) (tree.Tree, error) {
		t, err := kdtree.Build(data, func(ko *kdtree.Options) {
			ko.LeafSize = leafSize
			ko.Metric = m
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}
