package kdtree

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rann/matrix"
	"github.com/hupe1980/rann/metric"
	"github.com/hupe1980/rann/tree"
)

func randomMatrix(t *testing.T, rows, cols int, seed int64) *matrix.Matrix {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))

	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.Float64() * 10
	}

	m, err := matrix.NewFromData(rows, cols, data)
	require.NoError(t, err)

	return m
}

func TestBuild(t *testing.T) {
	t.Run("single leaf when points fit", func(t *testing.T) {
		m := randomMatrix(t, 3, 10, 1)

		tr, err := Build(m, func(o *Options) { o.LeafSize = 16 })
		require.NoError(t, err)

		assert.Equal(t, 1, tr.NumNodes())
		assert.True(t, tr.Root().IsLeaf())

		begin, end := tr.Root().PointRange()
		assert.Equal(t, 0, begin)
		assert.Equal(t, 10, end)
	})

	t.Run("splits above leaf size", func(t *testing.T) {
		m := randomMatrix(t, 2, 100, 2)

		tr, err := Build(m, func(o *Options) { o.LeafSize = 10 })
		require.NoError(t, err)

		assert.Greater(t, tr.NumNodes(), 1)
		assert.False(t, tr.Root().IsLeaf())
		assert.Equal(t, 2, tr.Root().NumChildren())
		assert.Equal(t, 100, tr.Root().NumDescendants())
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := Build(nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyData)
	})

	t.Run("rejects metric without rectangle bounds", func(t *testing.T) {
		m := randomMatrix(t, 2, 4, 3)

		_, err := Build(m, func(o *Options) { o.Metric = opaqueMetric{} })
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedMetric)
	})
}

type opaqueMetric struct{}

func (opaqueMetric) Name() string                   { return "opaque" }
func (opaqueMetric) Evaluate(a, b []float64) float64 { return 0 }

func TestOldFromNewPermutation(t *testing.T) {
	m := randomMatrix(t, 2, 60, 4)

	tr, err := Build(m, func(o *Options) { o.LeafSize = 5 })
	require.NoError(t, err)

	perm := tr.OldFromNew()
	require.Len(t, perm, 60)

	// The map must be a permutation, and the permuted dataset must hold the
	// original point at every mapped position.
	seen := make([]bool, 60)
	for newPos, oldPos := range perm {
		require.False(t, seen[oldPos])
		seen[oldPos] = true

		assert.Equal(t, m.Col(oldPos), tr.Dataset().Col(newPos))
	}
}

func TestSubtreeRangesContiguousAndNested(t *testing.T) {
	m := randomMatrix(t, 3, 200, 5)

	tr, err := Build(m, func(o *Options) { o.LeafSize = 8 })
	require.NoError(t, err)

	var walk func(n tree.Node)
	walk = func(n tree.Node) {
		begin, end := n.PointRange()
		require.Less(t, begin, end)
		assert.Equal(t, end-begin, n.NumDescendants())

		if n.IsLeaf() {
			assert.LessOrEqual(t, end-begin, 8)
			return
		}

		lb, le := n.Child(0).PointRange()
		rb, re := n.Child(1).PointRange()

		assert.Equal(t, begin, lb)
		assert.Equal(t, le, rb)
		assert.Equal(t, end, re)

		walk(n.Child(0))
		walk(n.Child(1))
	}

	walk(tr.Root())
}

func TestNodeBoundsContainDescendants(t *testing.T) {
	m := randomMatrix(t, 3, 150, 6)

	tr, err := Build(m, func(o *Options) { o.LeafSize = 10 })
	require.NoError(t, err)

	em := metric.Euclidean{}

	var walk func(n tree.Node)
	walk = func(n tree.Node) {
		begin, end := n.PointRange()
		for i := begin; i < end; i++ {
			p := tr.Dataset().Col(i)
			assert.Zero(t, n.MinToPoint(p), "descendant outside node bound")
		}

		// A point far away must be at least its true distance minus the
		// node diameter from the rectangle.
		far := []float64{100, 100, 100}
		minD := n.MinToPoint(far)
		for i := begin; i < end; i++ {
			d := em.Evaluate(far, tr.Dataset().Col(i))
			assert.LessOrEqual(t, minD, d+1e-9)
			assert.GreaterOrEqual(t, n.MaxToPoint(far)+1e-9, d)
		}

		if !n.IsLeaf() {
			walk(n.Child(0))
			walk(n.Child(1))
		}
	}

	walk(tr.Root())
}

func TestNodeToNodeBounds(t *testing.T) {
	m := randomMatrix(t, 2, 80, 7)

	tr, err := Build(m, func(o *Options) { o.LeafSize = 6 })
	require.NoError(t, err)

	root := tr.Root()
	require.False(t, root.IsLeaf())

	left, right := root.Child(0), root.Child(1)

	lmin := left.MinToNode(right)
	lmax := left.MaxToNode(right)
	assert.LessOrEqual(t, lmin, lmax)

	// Verify against the exhaustive pairwise distances.
	em := metric.Euclidean{}
	lb, le := left.PointRange()
	rb, re := right.PointRange()

	trueMin, trueMax := math.Inf(1), 0.0
	for i := lb; i < le; i++ {
		for j := rb; j < re; j++ {
			d := em.Evaluate(tr.Dataset().Col(i), tr.Dataset().Col(j))
			trueMin = math.Min(trueMin, d)
			trueMax = math.Max(trueMax, d)
		}
	}

	assert.LessOrEqual(t, lmin, trueMin+1e-9)
	assert.GreaterOrEqual(t, lmax+1e-9, trueMax)

	t.Run("foreign node degrades conservatively", func(t *testing.T) {
		assert.Zero(t, left.MinToNode(foreignNode{}))
		assert.True(t, math.IsInf(left.MaxToNode(foreignNode{}), 1))
	})
}

type foreignNode struct{}

func (foreignNode) IsLeaf() bool                        { return true }
func (foreignNode) NumChildren() int                    { return 0 }
func (foreignNode) Child(int) tree.Node                 { return nil }
func (foreignNode) NumDescendants() int                 { return 0 }
func (foreignNode) PointRange() (int, int)              { return 0, 0 }
func (foreignNode) Stat() *tree.Stat                    { return nil }
func (foreignNode) FurthestDescendantDistance() float64 { return 0 }
func (foreignNode) MinToPoint([]float64) float64        { return 0 }
func (foreignNode) MaxToPoint([]float64) float64        { return 0 }
func (foreignNode) MinToNode(tree.Node) float64         { return 0 }
func (foreignNode) MaxToNode(tree.Node) float64         { return 0 }

func TestResetStatistics(t *testing.T) {
	m := randomMatrix(t, 2, 50, 8)

	tr, err := Build(m, func(o *Options) { o.LeafSize = 4 })
	require.NoError(t, err)

	root := tr.Root()
	root.Stat().Bound = 3.5
	root.Stat().SamplesMade = 12

	tr.ResetStatistics(math.Inf(1))

	assert.Equal(t, math.Inf(1), root.Stat().Bound)
	assert.Zero(t, root.Stat().SamplesMade)

	var walk func(n tree.Node)
	walk = func(n tree.Node) {
		assert.Equal(t, math.Inf(1), n.Stat().Bound)
		assert.Zero(t, n.Stat().SamplesMade)

		for i := range n.NumChildren() {
			walk(n.Child(i))
		}
	}

	walk(tr.Root())
}

func TestFlattenRoundTrip(t *testing.T) {
	m := randomMatrix(t, 3, 120, 9)

	tr, err := Build(m, func(o *Options) { o.LeafSize = 7 })
	require.NoError(t, err)

	f := tr.Flatten()

	got, err := FromFlat(f)
	require.NoError(t, err)

	assert.Equal(t, tr.NumNodes(), got.NumNodes())
	assert.Equal(t, tr.OldFromNew(), got.OldFromNew())
	assert.Equal(t, tr.LeafSize(), got.LeafSize())
	assert.Equal(t, tr.Dataset().Data(), got.Dataset().Data())

	var walk func(a, b tree.Node)
	walk = func(a, b tree.Node) {
		ab, ae := a.PointRange()
		bb, be := b.PointRange()
		assert.Equal(t, ab, bb)
		assert.Equal(t, ae, be)
		assert.Equal(t, a.IsLeaf(), b.IsLeaf())

		for i := range a.NumChildren() {
			walk(a.Child(i), b.Child(i))
		}
	}

	walk(tr.Root(), got.Root())
}

func TestFromFlatValidation(t *testing.T) {
	m := randomMatrix(t, 2, 30, 10)

	tr, err := Build(m, func(o *Options) { o.LeafSize = 4 })
	require.NoError(t, err)

	t.Run("unknown metric", func(t *testing.T) {
		f := tr.Flatten()
		f.MetricName = "no-such-metric"

		_, err := FromFlat(f)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCorruptFlat)
	})

	t.Run("mismatched arrays", func(t *testing.T) {
		f := tr.Flatten()
		f.Ends = f.Ends[:len(f.Ends)-1]

		_, err := FromFlat(f)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCorruptFlat)
	})

	t.Run("child out of range", func(t *testing.T) {
		f := tr.Flatten()
		f.Lefts = append([]int32(nil), f.Lefts...)
		f.Rights = append([]int32(nil), f.Rights...)
		f.Lefts[0] = 999
		f.Rights[0] = 999

		_, err := FromFlat(f)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCorruptFlat)
	})
}
