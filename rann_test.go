package rann

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rann/matrix"
	"github.com/hupe1980/rann/testutil"
	"github.com/hupe1980/rann/tree"
	"github.com/hupe1980/rann/tree/kdtree"
)

func TestNew(t *testing.T) {
	data := testutil.NewRNG(1).UniformMatrix(50, 3)

	t.Run("nil data", func(t *testing.T) {
		_, err := New(nil)
		assert.ErrorIs(t, err, ErrEmptyReferenceSet)
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := New(data, func(o *Options) { o.Tau = 0 })

		var pErr *ErrInvalidParameter
		require.ErrorAs(t, err, &pErr)
		assert.Equal(t, "Tau", pErr.Name)
	})

	t.Run("tree modes build and permute", func(t *testing.T) {
		s, err := New(data, func(o *Options) { o.Mode = ModeSingleTree })
		require.NoError(t, err)

		assert.NotNil(t, s.refTree)
		assert.NotNil(t, s.refMap)
		assert.NotSame(t, data, s.refData)
	})

	t.Run("naive borrows the matrix", func(t *testing.T) {
		s, err := New(data, func(o *Options) { o.Mode = ModeNaive })
		require.NoError(t, err)

		assert.Nil(t, s.refTree)
		assert.Same(t, data, s.refData)
	})

	t.Run("build is measured and logged", func(t *testing.T) {
		var buf bytes.Buffer
		collector := &BasicMetricsCollector{}

		_, err := New(data, func(o *Options) {
			o.Metrics = collector
			o.Logger = NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		})
		require.NoError(t, err)

		assert.Equal(t, int64(1), collector.GetStats().BuildCount)
		assert.Contains(t, buf.String(), "searcher ready")
		assert.Contains(t, buf.String(), "mode=dual-tree")
	})

	t.Run("accessors", func(t *testing.T) {
		s, err := New(data, func(o *Options) { o.Mode = ModeNaive })
		require.NoError(t, err)

		assert.Equal(t, ModeNaive, s.Mode())
		assert.Equal(t, 50, s.NumReferences())
		assert.Equal(t, 3, s.Dimension())
	})
}

func TestNewFromPoints(t *testing.T) {
	t.Run("ragged points", func(t *testing.T) {
		_, err := NewFromPoints([][]float64{{1, 2}, {3}})
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := NewFromPoints(nil)
		assert.Error(t, err)
	})

	t.Run("builds", func(t *testing.T) {
		s, err := NewFromPoints([][]float64{{1, 2}, {3, 4}, {5, 6}})
		require.NoError(t, err)
		assert.Equal(t, 3, s.NumReferences())
		assert.Equal(t, 2, s.Dimension())
	})
}

func TestNewFromTree(t *testing.T) {
	data := testutil.NewRNG(2).UniformMatrix(60, 3)

	built, err := kdtree.Build(data)
	require.NoError(t, err)

	t.Run("naive mode rejected", func(t *testing.T) {
		_, err := NewFromTree(built, func(o *Options) { o.Mode = ModeNaive })
		assert.ErrorIs(t, err, ErrInvalidMode)
	})

	t.Run("nil tree", func(t *testing.T) {
		_, err := NewFromTree(nil)
		assert.ErrorIs(t, err, ErrEmptyReferenceSet)
	})

	t.Run("adopted kd-tree answers in original coordinates", func(t *testing.T) {
		s, err := NewFromTree(built, func(o *Options) { o.Tau = 1 })
		require.NoError(t, err)

		queries := testutil.NewRNG(3).UniformMatrix(10, 3)
		res, err := s.Search(context.Background(), queries, 2)
		require.NoError(t, err)

		wantIdx, wantDist := testutil.BruteForce(data, queries, 2, s.opts.Metric, s.opts.SortPolicy, false)
		for q := range res.NumQueries() {
			assert.Equal(t, wantIdx[q], res.Indices(q))
			assert.Equal(t, wantDist[q], res.Distances(q))
		}
	})

	t.Run("adopted third-party tree", func(t *testing.T) {
		st := newStubTree(data, 16)

		s, err := NewFromTree(st, func(o *Options) {
			o.Mode = ModeSingleTree
			o.Tau = 1
		})
		require.NoError(t, err)

		queries := testutil.NewRNG(4).UniformMatrix(5, 3)
		res, err := s.Search(context.Background(), queries, 1)
		require.NoError(t, err)

		wantIdx, _ := testutil.BruteForce(data, queries, 1, s.opts.Metric, s.opts.SortPolicy, false)
		for q := range res.NumQueries() {
			assert.Equal(t, wantIdx[q], res.Indices(q))
		}
	})
}

func TestSearchValidation(t *testing.T) {
	ctx := context.Background()
	data := testutil.NewRNG(5).UniformMatrix(30, 4)
	queries := testutil.NewRNG(6).UniformMatrix(3, 4)

	s, err := New(data)
	require.NoError(t, err)

	t.Run("k below one", func(t *testing.T) {
		_, err := s.Search(ctx, queries, 0)
		assert.ErrorIs(t, err, ErrInvalidK)
	})

	t.Run("nil queries", func(t *testing.T) {
		_, err := s.Search(ctx, nil, 1)
		assert.ErrorIs(t, err, ErrEmptyQuerySet)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		bad := testutil.NewRNG(7).UniformMatrix(3, 2)

		_, err := s.Search(ctx, bad, 1)

		var dimErr *ErrDimensionMismatch
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 4, dimErr.Expected)
		assert.Equal(t, 2, dimErr.Actual)
	})

	t.Run("canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.Search(canceled, queries, 1)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("search errors are recorded", func(t *testing.T) {
		collector := &BasicMetricsCollector{}
		s, err := New(data, func(o *Options) { o.Metrics = collector })
		require.NoError(t, err)

		_, err = s.Search(ctx, queries, 0)
		require.Error(t, err)

		stats := collector.GetStats()
		assert.Equal(t, int64(1), stats.SearchCount)
		assert.Equal(t, int64(1), stats.SearchErrors)
	})

	t.Run("successful searches are measured", func(t *testing.T) {
		collector := &BasicMetricsCollector{}
		s, err := New(data, func(o *Options) { o.Metrics = collector })
		require.NoError(t, err)

		_, err = s.Search(ctx, queries, 2)
		require.NoError(t, err)

		stats := collector.GetStats()
		assert.Equal(t, int64(1), stats.SearchCount)
		assert.Equal(t, int64(0), stats.SearchErrors)
		assert.Equal(t, int64(3), stats.SearchQueries)
	})
}

func TestSearcherStats(t *testing.T) {
	ctx := context.Background()
	data := testutil.NewRNG(13).UniformMatrix(30, 3)
	queries := testutil.NewRNG(14).UniformMatrix(4, 3)

	t.Run("zero before the first search", func(t *testing.T) {
		s, err := New(data)
		require.NoError(t, err)

		assert.Equal(t, SearchStats{}, s.Stats())
	})

	t.Run("exhaustive pass covers every reference", func(t *testing.T) {
		s, err := New(data, WithMode(ModeNaive), WithTau(1))
		require.NoError(t, err)

		_, err = s.Search(ctx, queries, 2)
		require.NoError(t, err)

		st := s.Stats()
		assert.Equal(t, 30, st.SamplesRequired)
		assert.Equal(t, 1.0, st.SamplingRatio)
		assert.Equal(t, int64(4*30), st.DistanceComputations)
	})

	t.Run("sampling pass stays under the reference count", func(t *testing.T) {
		s, err := New(data, WithMode(ModeNaive), WithTau(0.2), WithSeed(15))
		require.NoError(t, err)

		_, err = s.Search(ctx, queries, 1)
		require.NoError(t, err)

		st := s.Stats()
		assert.Positive(t, st.SamplesRequired)
		assert.Less(t, st.SamplesRequired, 30)
		assert.InDelta(t, float64(st.SamplesRequired)/30, st.SamplingRatio, 1e-12)
		assert.Equal(t, int64(4*st.SamplesRequired), st.DistanceComputations)
	})

	t.Run("tree modes report too", func(t *testing.T) {
		s, err := New(data, WithTau(1), WithSeed(16))
		require.NoError(t, err)

		_, err = s.Search(ctx, queries, 1)
		require.NoError(t, err)

		st := s.Stats()
		assert.Equal(t, 30, st.SamplesRequired)
		assert.Positive(t, st.DistanceComputations)
	})
}

func TestSearchTreeValidation(t *testing.T) {
	ctx := context.Background()
	data := testutil.NewRNG(8).UniformMatrix(40, 3)
	queryData := testutil.NewRNG(9).UniformMatrix(6, 3)

	queryTree, err := kdtree.Build(queryData)
	require.NoError(t, err)

	t.Run("requires dual-tree mode", func(t *testing.T) {
		for _, mode := range []Mode{ModeSingleTree, ModeNaive} {
			s, err := New(data, func(o *Options) { o.Mode = mode })
			require.NoError(t, err)

			_, err = s.SearchTree(ctx, queryTree, 1)
			assert.ErrorIs(t, err, ErrInvalidMode, mode.String())
		}
	})

	t.Run("nil query tree", func(t *testing.T) {
		s, err := New(data)
		require.NoError(t, err)

		_, err = s.SearchTree(ctx, nil, 1)
		assert.ErrorIs(t, err, ErrEmptyQuerySet)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		s, err := New(data)
		require.NoError(t, err)

		badTree, err := kdtree.Build(testutil.NewRNG(10).UniformMatrix(6, 2))
		require.NoError(t, err)

		_, err = s.SearchTree(ctx, badTree, 1)

		var dimErr *ErrDimensionMismatch
		assert.ErrorAs(t, err, &dimErr)
	})
}

func TestSearchAllValidation(t *testing.T) {
	data := testutil.NewRNG(11).UniformMatrix(25, 3)

	s, err := New(data)
	require.NoError(t, err)

	_, err = s.SearchAll(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidK)
}

var errBuilderFailed = errors.New("builder failed")

func TestNewBuilderFailure(t *testing.T) {
	data := testutil.NewRNG(12).UniformMatrix(10, 2)
	collector := &BasicMetricsCollector{}

	_, err := New(data, func(o *Options) {
		o.Metrics = collector
		o.TreeBuilder = func(*matrix.Matrix) (tree.Tree, error) {
			return nil, errBuilderFailed
		}
	})

	assert.ErrorIs(t, err, errBuilderFailed)
	assert.Equal(t, int64(1), collector.GetStats().BuildErrors)
}
