// Package tree defines the spatial index contract consumed by the search
// core. A tree partitions a point set hierarchically; the search never cares
// how the partition was built, only that nodes expose children, contiguous
// point ranges, geometric distance bounds and a mutable statistic slot.
package tree

import (
	"github.com/hupe1980/rann/matrix"
)

// Stat is the mutable per-node search state. Bound tracks the worst
// candidate distance that could still matter for any query descendant;
// SamplesMade counts reference samples already credited to every query
// descendant. Both are owned by exactly one traversal at a time.
type Stat struct {
	Bound       float64
	SamplesMade int
}

// Node is a single node of a spatial tree. Implementations are expected to
// be lightweight handles into an arena so that passing them by value is
// cheap.
type Node interface {
	// IsLeaf reports whether the node has no children.
	IsLeaf() bool

	// NumChildren returns the number of children, zero for leaves.
	NumChildren() int

	// Child returns the i-th child in construction order.
	Child(i int) Node

	// NumDescendants returns the number of points in the node's subtree.
	NumDescendants() int

	// PointRange returns the node's contiguous tree-ordinal point range
	// [begin, end). Implementations must keep subtree ranges contiguous so
	// that internal nodes can be sampled directly.
	PointRange() (begin, end int)

	// Stat returns the node's mutable statistic slot.
	Stat() *Stat

	// FurthestDescendantDistance bounds the distance from the node's
	// region center to its farthest descendant.
	FurthestDescendantDistance() float64

	// MinToPoint returns a lower bound on the distance from p to any
	// descendant of the node.
	MinToPoint(p []float64) float64

	// MaxToPoint returns an upper bound on the distance from p to any
	// descendant of the node.
	MaxToPoint(p []float64) float64

	// MinToNode returns a lower bound on the distance between any
	// descendant of the node and any descendant of other. When the two
	// nodes belong to incompatible implementations the bound degrades to
	// zero, which is always safe.
	MinToNode(other Node) float64

	// MaxToNode returns an upper bound on the distance between any
	// descendant of the node and any descendant of other, degrading to
	// +Inf across incompatible implementations.
	MaxToNode(other Node) float64
}

// Tree is a spatial partition over a point set.
type Tree interface {
	// Root returns the root node.
	Root() Node

	// Dataset returns the point set the tree was built over, in tree
	// order. Borrowed; callers must not mutate it.
	Dataset() *matrix.Matrix

	// OldFromNew maps a tree-ordinal position to the original position of
	// the point in the caller's input. A nil map means the tree did not
	// rearrange points.
	OldFromNew() []int

	// NumNodes returns the total node count.
	NumNodes() int

	// ResetStatistics restores every node's Stat to its initial state:
	// Bound = worstBound, SamplesMade = 0. Runs in O(nodes).
	ResetStatistics(worstBound float64)
}

// Builder constructs a tree over a point set. The engine uses it to build
// query trees on demand.
type Builder func(data *matrix.Matrix) (Tree, error)
