package rann

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rann/matrix"
	"github.com/hupe1980/rann/metric"
	"github.com/hupe1980/rann/neighbor"
	"github.com/hupe1980/rann/testutil"
	"github.com/hupe1980/rann/tree"
	"github.com/hupe1980/rann/tree/kdtree"
)

func TestResolveOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts := resolveOptions(nil)

		assert.Equal(t, ModeDualTree, opts.Mode)
		assert.Equal(t, 0.05, opts.Tau)
		assert.Equal(t, 0.95, opts.Alpha)
		assert.False(t, opts.SampleAtLeaves)
		assert.False(t, opts.FirstLeafExact)
		assert.Equal(t, 20, opts.SingleSampleLimit)
		assert.Equal(t, 20, opts.LeafSize)
		assert.Equal(t, "l2", opts.Metric.Name())
		assert.Equal(t, "nearest", opts.SortPolicy.Name())
		assert.NotNil(t, opts.Logger)
		assert.NotNil(t, opts.Metrics)
	})

	t.Run("nil option funcs are skipped", func(t *testing.T) {
		opts := resolveOptions([]func(o *Options){nil, func(o *Options) { o.Tau = 0.5 }, nil})
		assert.Equal(t, 0.5, opts.Tau)
	})

	t.Run("nil fields fall back to defaults", func(t *testing.T) {
		opts := resolveOptions([]func(o *Options){func(o *Options) {
			o.Metric = nil
			o.SortPolicy = nil
			o.Logger = nil
			o.Metrics = nil
		}})

		assert.NotNil(t, opts.Metric)
		assert.NotNil(t, opts.SortPolicy)
		assert.NotNil(t, opts.Logger)
		assert.NotNil(t, opts.Metrics)
	})
}

func TestOptionHelpers(t *testing.T) {
	builder := func(data *matrix.Matrix) (tree.Tree, error) {
		return kdtree.Build(data)
	}
	logger := NoopLogger()
	collector := &BasicMetricsCollector{}

	opts := resolveOptions([]func(o *Options){
		WithMode(ModeSingleTree),
		WithTau(0.2),
		WithAlpha(0.9),
		WithSampleAtLeaves(true),
		WithFirstLeafExact(true),
		WithSingleSampleLimit(7),
		WithMetric(metric.Manhattan{}),
		WithSortPolicy(neighbor.Furthest{}),
		WithLeafSize(8),
		WithSeed(42),
		WithParallelism(2),
		WithTreeBuilder(builder),
		WithLogger(logger),
		WithMetrics(collector),
	})

	assert.Equal(t, ModeSingleTree, opts.Mode)
	assert.Equal(t, 0.2, opts.Tau)
	assert.Equal(t, 0.9, opts.Alpha)
	assert.True(t, opts.SampleAtLeaves)
	assert.True(t, opts.FirstLeafExact)
	assert.Equal(t, 7, opts.SingleSampleLimit)
	assert.Equal(t, "l1", opts.Metric.Name())
	assert.Equal(t, "furthest", opts.SortPolicy.Name())
	assert.Equal(t, 8, opts.LeafSize)
	assert.Equal(t, int64(42), opts.Seed)
	assert.Equal(t, 2, opts.Parallelism)
	assert.NotNil(t, opts.TreeBuilder)
	assert.Same(t, logger, opts.Logger)
	assert.Same(t, collector, opts.Metrics)
}

func TestOptionsValidate(t *testing.T) {
	valid := func() Options {
		opts := resolveOptions(nil)
		return opts
	}

	t.Run("defaults pass", func(t *testing.T) {
		opts := valid()
		assert.NoError(t, opts.validate())
	})

	tests := []struct {
		name   string
		mutate func(o *Options)
		param  string
	}{
		{"unknown mode", func(o *Options) { o.Mode = Mode(9) }, "Mode"},
		{"tau zero", func(o *Options) { o.Tau = 0 }, "Tau"},
		{"tau negative", func(o *Options) { o.Tau = -0.1 }, "Tau"},
		{"tau above one", func(o *Options) { o.Tau = 1.5 }, "Tau"},
		{"alpha negative", func(o *Options) { o.Alpha = -0.5 }, "Alpha"},
		{"sample limit zero", func(o *Options) { o.SingleSampleLimit = 0 }, "SingleSampleLimit"},
		{"leaf size zero", func(o *Options) { o.LeafSize = 0 }, "LeafSize"},
		{"negative parallelism", func(o *Options) { o.Parallelism = -1 }, "Parallelism"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := valid()
			tc.mutate(&opts)

			err := opts.validate()
			require.Error(t, err)

			var pErr *ErrInvalidParameter
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, tc.param, pErr.Name)
		})
	}

	t.Run("invalid mode unwraps to ErrInvalidMode", func(t *testing.T) {
		opts := valid()
		opts.Mode = Mode(9)
		assert.ErrorIs(t, opts.validate(), ErrInvalidMode)
	})

	t.Run("tau of one is legal", func(t *testing.T) {
		opts := valid()
		opts.Tau = 1
		assert.NoError(t, opts.validate())
	})

	t.Run("alpha above one is legal and exhaustive", func(t *testing.T) {
		opts := valid()
		opts.Alpha = 1.5
		assert.NoError(t, opts.validate())
	})
}

func TestTreeBuilder(t *testing.T) {
	data := testutil.NewRNG(1).UniformMatrix(64, 3)

	t.Run("default builds kd-trees honoring leaf size", func(t *testing.T) {
		opts := resolveOptions([]func(o *Options){func(o *Options) { o.LeafSize = 4 }})

		built, err := opts.treeBuilder()(data)
		require.NoError(t, err)

		kt, ok := built.(*kdtree.Tree)
		require.True(t, ok)
		assert.Greater(t, kt.NumNodes(), 1)
	})

	t.Run("custom builder wins", func(t *testing.T) {
		calls := 0
		opts := resolveOptions([]func(o *Options){func(o *Options) {
			o.TreeBuilder = func(data *matrix.Matrix) (tree.Tree, error) {
				calls++
				return kdtree.Build(data)
			}
		}})

		built, err := opts.treeBuilder()(data)
		require.NoError(t, err)
		assert.NotNil(t, built)
		assert.Equal(t, 1, calls)
	})

	t.Run("metric flows into the tree", func(t *testing.T) {
		opts := resolveOptions([]func(o *Options){func(o *Options) {
			o.Metric = metric.Manhattan{}
		}})

		built, err := opts.treeBuilder()(data)
		require.NoError(t, err)

		kt := built.(*kdtree.Tree)
		assert.Equal(t, "l1", kt.Metric().Name())
	})
}
