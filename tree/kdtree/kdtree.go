// Package kdtree provides an arena-backed k-d tree implementing the
// tree.Tree contract. Nodes live in flat arrays indexed by node id, point
// ranges stay contiguous for every subtree, and building permutes a private
// copy of the input, recording the old-from-new map for result remapping.
package kdtree

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/hupe1980/rann/matrix"
	"github.com/hupe1980/rann/metric"
	"github.com/hupe1980/rann/tree"
)

var (
	// ErrUnsupportedMetric is returned when the metric cannot bound
	// distances against rectangles.
	ErrUnsupportedMetric = errors.New("kdtree: metric does not support rectangle bounds")

	// ErrEmptyData is returned when building over an empty matrix.
	ErrEmptyData = errors.New("kdtree: empty point set")
)

// Options configures tree construction.
type Options struct {
	// LeafSize is the maximum number of points per leaf.
	LeafSize int

	// Metric must implement metric.IntervalMetric.
	Metric metric.Metric
}

// DefaultOptions holds the default tree construction options.
var DefaultOptions = Options{
	LeafSize: 20,
	Metric:   metric.Euclidean{},
}

type nodeData struct {
	begin, end  int32
	left, right int32
}

// Tree is an arena-backed k-d tree over a permuted copy of the input.
type Tree struct {
	data       *matrix.Matrix
	oldFromNew []int
	im         metric.IntervalMetric
	leafSize   int

	nodes     []nodeData
	boundsMin []float64
	boundsMax []float64
	stats     []tree.Stat
}

// Build constructs a k-d tree over data. The input matrix is not modified;
// the tree keeps its own permuted copy.
func Build(data *matrix.Matrix, optFns ...func(o *Options)) (*Tree, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if data == nil || data.Cols() == 0 || data.Rows() == 0 {
		return nil, ErrEmptyData
	}

	if opts.LeafSize < 1 {
		opts.LeafSize = 1
	}

	im, ok := opts.Metric.(metric.IntervalMetric)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMetric, opts.Metric.Name())
	}

	n := data.Cols()
	dims := data.Rows()

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	t := &Tree{
		im:       im,
		leafSize: opts.LeafSize,
	}

	b := &builder{tree: t, src: data, perm: perm, dims: dims}
	b.build(0, n)

	permuted, err := data.PermuteCols(perm)
	if err != nil {
		return nil, err
	}

	t.data = permuted
	t.oldFromNew = perm

	return t, nil
}

type builder struct {
	tree *Tree
	src  *matrix.Matrix
	perm []int
	dims int
}

// build creates the node covering perm[begin:end) and returns its id.
// Children are emitted depth-first, left before right.
func (b *builder) build(begin, end int) int32 {
	t := b.tree
	id := int32(len(t.nodes))

	t.nodes = append(t.nodes, nodeData{
		begin: int32(begin),
		end:   int32(end),
		left:  -1,
		right: -1,
	})
	t.stats = append(t.stats, tree.Stat{Bound: math.Inf(1)})

	lo, hi := b.bounds(begin, end)
	t.boundsMin = append(t.boundsMin, lo...)
	t.boundsMax = append(t.boundsMax, hi...)

	if end-begin <= t.leafSize {
		return id
	}

	dim := widestDim(lo, hi)

	span := b.perm[begin:end]
	sort.Slice(span, func(i, j int) bool {
		return b.src.At(dim, span[i]) < b.src.At(dim, span[j])
	})

	mid := begin + (end-begin)/2

	left := b.build(begin, mid)
	right := b.build(mid, end)

	t.nodes[id].left = left
	t.nodes[id].right = right

	return id
}

func (b *builder) bounds(begin, end int) (lo, hi []float64) {
	lo = make([]float64, b.dims)
	hi = make([]float64, b.dims)

	first := b.src.Col(b.perm[begin])
	copy(lo, first)
	copy(hi, first)

	for i := begin + 1; i < end; i++ {
		col := b.src.Col(b.perm[i])
		for d, v := range col {
			if v < lo[d] {
				lo[d] = v
			}
			if v > hi[d] {
				hi[d] = v
			}
		}
	}

	return lo, hi
}

func widestDim(lo, hi []float64) int {
	dim, widest := 0, -1.0
	for d := range lo {
		if spread := hi[d] - lo[d]; spread > widest {
			dim, widest = d, spread
		}
	}

	return dim
}

// Root implements tree.Tree.
func (t *Tree) Root() tree.Node { return Node{t: t, id: 0} }

// Dataset implements tree.Tree.
func (t *Tree) Dataset() *matrix.Matrix { return t.data }

// OldFromNew implements tree.Tree.
func (t *Tree) OldFromNew() []int { return t.oldFromNew }

// NumNodes implements tree.Tree.
func (t *Tree) NumNodes() int { return len(t.nodes) }

// LeafSize returns the leaf size the tree was built with.
func (t *Tree) LeafSize() int { return t.leafSize }

// Metric returns the metric the tree bounds distances with.
func (t *Tree) Metric() metric.Metric { return t.im }

// ResetStatistics implements tree.Tree.
func (t *Tree) ResetStatistics(worstBound float64) {
	for i := range t.stats {
		t.stats[i].Bound = worstBound
		t.stats[i].SamplesMade = 0
	}
}

func (t *Tree) nodeLo(id int32) []float64 {
	d := len(t.boundsMin) / len(t.nodes)
	return t.boundsMin[int(id)*d : (int(id)+1)*d]
}

func (t *Tree) nodeHi(id int32) []float64 {
	d := len(t.boundsMax) / len(t.nodes)
	return t.boundsMax[int(id)*d : (int(id)+1)*d]
}

// Node is a handle into the tree's node arena.
type Node struct {
	t  *Tree
	id int32
}

// IsLeaf implements tree.Node.
func (n Node) IsLeaf() bool { return n.t.nodes[n.id].left < 0 }

// NumChildren implements tree.Node.
func (n Node) NumChildren() int {
	if n.IsLeaf() {
		return 0
	}

	return 2
}

// Child implements tree.Node.
func (n Node) Child(i int) tree.Node {
	nd := n.t.nodes[n.id]
	if i == 0 {
		return Node{t: n.t, id: nd.left}
	}

	return Node{t: n.t, id: nd.right}
}

// NumDescendants implements tree.Node.
func (n Node) NumDescendants() int {
	nd := n.t.nodes[n.id]
	return int(nd.end - nd.begin)
}

// PointRange implements tree.Node.
func (n Node) PointRange() (int, int) {
	nd := n.t.nodes[n.id]
	return int(nd.begin), int(nd.end)
}

// Stat implements tree.Node.
func (n Node) Stat() *tree.Stat { return &n.t.stats[n.id] }

// FurthestDescendantDistance implements tree.Node. Half the bounding
// rectangle's diameter bounds the distance from the region center to any
// point inside it.
func (n Node) FurthestDescendantDistance() float64 {
	return 0.5 * n.t.im.Evaluate(n.t.nodeLo(n.id), n.t.nodeHi(n.id))
}

// MinToPoint implements tree.Node.
func (n Node) MinToPoint(p []float64) float64 {
	return n.t.im.MinToRect(p, n.t.nodeLo(n.id), n.t.nodeHi(n.id))
}

// MaxToPoint implements tree.Node.
func (n Node) MaxToPoint(p []float64) float64 {
	return n.t.im.MaxToRect(p, n.t.nodeLo(n.id), n.t.nodeHi(n.id))
}

// MinToNode implements tree.Node. Nodes of foreign tree implementations get
// the conservative zero bound, which never prunes incorrectly. Both trees
// are assumed to use the same metric.
func (n Node) MinToNode(other tree.Node) float64 {
	o, ok := other.(Node)
	if !ok {
		return 0
	}

	return n.t.im.MinRectToRect(n.t.nodeLo(n.id), n.t.nodeHi(n.id), o.t.nodeLo(o.id), o.t.nodeHi(o.id))
}

// MaxToNode implements tree.Node.
func (n Node) MaxToNode(other tree.Node) float64 {
	o, ok := other.(Node)
	if !ok {
		return math.Inf(1)
	}

	return n.t.im.MaxRectToRect(n.t.nodeLo(n.id), n.t.nodeHi(n.id), o.t.nodeLo(o.id), o.t.nodeHi(o.id))
}

var (
	_ tree.Tree = (*Tree)(nil)
	_ tree.Node = Node{}
)
