// Package neighbor provides the ordering abstraction shared by candidate
// insertion and pruning. A SortPolicy decides what "better" means so the
// same search core serves nearest-neighbor and furthest-neighbor queries.
package neighbor

import (
	"math"

	"github.com/hupe1980/rann/tree"
)

// SortPolicy orders candidate distances. Nearest treats smaller as better,
// Furthest treats larger as better. The policy also selects which geometric
// bound of a tree node is relevant for its direction.
type SortPolicy interface {
	// Name identifies the policy for persistence and logs.
	Name() string

	// WorstDistance is the sentinel no real candidate can be worse than.
	WorstDistance() float64

	// BestDistance is the unbeatable limit in the policy's direction.
	BestDistance() float64

	// IsBetter reports whether a is a strict improvement over b.
	IsBetter(a, b float64) bool

	// BestPointToNode returns the best-case distance between a point and
	// any descendant of the node.
	BestPointToNode(p []float64, n tree.Node) float64

	// BestNodeToNode returns the best-case distance between descendants of
	// the two nodes.
	BestNodeToNode(a, b tree.Node) float64

	// RelaxBound loosens a candidate bound by lambda in the policy's worst
	// direction.
	RelaxBound(bound, lambda float64) float64

	// Priority maps a best-case distance to a traversal priority where
	// smaller values are searched first. The mapping must be its own
	// inverse so that cached priorities can be converted back to
	// distances.
	Priority(distance float64) float64
}

// Nearest orders candidates ascending by distance.
type Nearest struct{}

// Name implements SortPolicy.
func (Nearest) Name() string { return "nearest" }

// WorstDistance implements SortPolicy.
func (Nearest) WorstDistance() float64 { return math.Inf(1) }

// BestDistance implements SortPolicy.
func (Nearest) BestDistance() float64 { return math.Inf(-1) }

// IsBetter implements SortPolicy.
func (Nearest) IsBetter(a, b float64) bool { return a < b }

// BestPointToNode implements SortPolicy.
func (Nearest) BestPointToNode(p []float64, n tree.Node) float64 { return n.MinToPoint(p) }

// BestNodeToNode implements SortPolicy.
func (Nearest) BestNodeToNode(a, b tree.Node) float64 { return a.MinToNode(b) }

// RelaxBound implements SortPolicy.
func (Nearest) RelaxBound(bound, lambda float64) float64 { return bound + lambda }

// Priority implements SortPolicy.
func (Nearest) Priority(distance float64) float64 { return distance }

// Furthest orders candidates descending by distance.
type Furthest struct{}

// Name implements SortPolicy.
func (Furthest) Name() string { return "furthest" }

// WorstDistance implements SortPolicy.
func (Furthest) WorstDistance() float64 { return math.Inf(-1) }

// BestDistance implements SortPolicy.
func (Furthest) BestDistance() float64 { return math.Inf(1) }

// IsBetter implements SortPolicy.
func (Furthest) IsBetter(a, b float64) bool { return a > b }

// BestPointToNode implements SortPolicy.
func (Furthest) BestPointToNode(p []float64, n tree.Node) float64 { return n.MaxToPoint(p) }

// BestNodeToNode implements SortPolicy.
func (Furthest) BestNodeToNode(a, b tree.Node) float64 { return a.MaxToNode(b) }

// RelaxBound implements SortPolicy.
func (Furthest) RelaxBound(bound, lambda float64) float64 { return bound - lambda }

// Priority implements SortPolicy.
func (Furthest) Priority(distance float64) float64 { return -distance }

// ByName resolves a policy name as produced by SortPolicy.Name.
func ByName(name string) (SortPolicy, bool) {
	switch name {
	case Nearest{}.Name():
		return Nearest{}, true
	case Furthest{}.Name():
		return Furthest{}, true
	default:
		return nil, false
	}
}

var (
	_ SortPolicy = Nearest{}
	_ SortPolicy = Furthest{}
)
