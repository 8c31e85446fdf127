package rann

import (
	"math"

	"github.com/hupe1980/rann/matrix"
	"github.com/hupe1980/rann/metric"
	"github.com/hupe1980/rann/tree"
)

// stubTree is a minimal tree.Tree over an unpermuted point set. Ranges are
// split in input order, bounds come straight from the contained points.
// It stands in for third-party tree implementations in tests.
type stubTree struct {
	data  *matrix.Matrix
	root  *stubNode
	nodes []*stubNode
}

type stubNode struct {
	data     *matrix.Matrix
	m        metric.Metric
	begin    int
	end      int
	children []*stubNode
	stat     tree.Stat
}

func newStubTree(data *matrix.Matrix, leafSize int) *stubTree {
	t := &stubTree{data: data}
	t.root = t.build(0, data.Cols(), leafSize)
	return t
}

func (t *stubTree) build(begin, end, leafSize int) *stubNode {
	n := &stubNode{
		data:  t.data,
		m:     metric.Euclidean{},
		begin: begin,
		end:   end,
		stat:  tree.Stat{Bound: math.Inf(1)},
	}
	t.nodes = append(t.nodes, n)

	if end-begin > leafSize {
		mid := (begin + end) / 2
		n.children = []*stubNode{
			t.build(begin, mid, leafSize),
			t.build(mid, end, leafSize),
		}
	}

	return n
}

func (t *stubTree) Root() tree.Node         { return t.root }
func (t *stubTree) Dataset() *matrix.Matrix { return t.data }
func (t *stubTree) OldFromNew() []int       { return nil }
func (t *stubTree) NumNodes() int           { return len(t.nodes) }

func (t *stubTree) ResetStatistics(worstBound float64) {
	for _, n := range t.nodes {
		n.stat = tree.Stat{Bound: worstBound}
	}
}

func (n *stubNode) IsLeaf() bool           { return len(n.children) == 0 }
func (n *stubNode) NumChildren() int       { return len(n.children) }
func (n *stubNode) Child(i int) tree.Node  { return n.children[i] }
func (n *stubNode) NumDescendants() int    { return n.end - n.begin }
func (n *stubNode) PointRange() (int, int) { return n.begin, n.end }
func (n *stubNode) Stat() *tree.Stat       { return &n.stat }

func (n *stubNode) FurthestDescendantDistance() float64 {
	// The subtree diameter over-estimates the center distance, which is
	// always safe for bound relaxation.
	var d float64
	for i := n.begin; i < n.end; i++ {
		for j := i + 1; j < n.end; j++ {
			if v := n.m.Evaluate(n.data.Col(i), n.data.Col(j)); v > d {
				d = v
			}
		}
	}
	return d
}

func (n *stubNode) MinToPoint(p []float64) float64 {
	d := math.Inf(1)
	for i := n.begin; i < n.end; i++ {
		if v := n.m.Evaluate(p, n.data.Col(i)); v < d {
			d = v
		}
	}
	return d
}

func (n *stubNode) MaxToPoint(p []float64) float64 {
	var d float64
	for i := n.begin; i < n.end; i++ {
		if v := n.m.Evaluate(p, n.data.Col(i)); v > d {
			d = v
		}
	}
	return d
}

func (n *stubNode) MinToNode(other tree.Node) float64 {
	d := math.Inf(1)
	for i := n.begin; i < n.end; i++ {
		if v := other.MinToPoint(n.data.Col(i)); v < d {
			d = v
		}
	}
	return d
}

func (n *stubNode) MaxToNode(other tree.Node) float64 {
	var d float64
	for i := n.begin; i < n.end; i++ {
		if v := other.MaxToPoint(n.data.Col(i)); v > d {
			d = v
		}
	}
	return d
}

var (
	_ tree.Tree = (*stubTree)(nil)
	_ tree.Node = (*stubNode)(nil)
)
