package kdtree

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/rann/matrix"
	"github.com/hupe1980/rann/metric"
	"github.com/hupe1980/rann/tree"
)

// ErrCorruptFlat is returned when a flattened tree fails validation.
var ErrCorruptFlat = errors.New("kdtree: corrupt flattened tree")

// Flat is the serializable form of a Tree: parallel arrays plus the permuted
// dataset. Statistics are transient and not part of it.
type Flat struct {
	LeafSize   int
	MetricName string
	Rows       int
	Cols       int
	Data       []float64
	OldFromNew []int
	Begins     []int32
	Ends       []int32
	Lefts      []int32
	Rights     []int32
	BoundsMin  []float64
	BoundsMax  []float64
}

// Flatten returns the serializable form of the tree. The returned slices
// alias the tree's arenas; treat them as read-only.
func (t *Tree) Flatten() *Flat {
	f := &Flat{
		LeafSize:   t.leafSize,
		MetricName: t.im.Name(),
		Rows:       t.data.Rows(),
		Cols:       t.data.Cols(),
		Data:       t.data.Data(),
		OldFromNew: t.oldFromNew,
		Begins:     make([]int32, len(t.nodes)),
		Ends:       make([]int32, len(t.nodes)),
		Lefts:      make([]int32, len(t.nodes)),
		Rights:     make([]int32, len(t.nodes)),
		BoundsMin:  t.boundsMin,
		BoundsMax:  t.boundsMax,
	}

	for i, nd := range t.nodes {
		f.Begins[i] = nd.begin
		f.Ends[i] = nd.end
		f.Lefts[i] = nd.left
		f.Rights[i] = nd.right
	}

	return f
}

// FromFlat validates a flattened tree and reconstructs the Tree. The Flat's
// slices are adopted, not copied.
func FromFlat(f *Flat) (*Tree, error) {
	m, err := metric.ByName(f.MetricName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFlat, err)
	}

	im, ok := m.(metric.IntervalMetric)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMetric, f.MetricName)
	}

	numNodes := len(f.Begins)

	switch {
	case numNodes == 0:
		return nil, fmt.Errorf("%w: no nodes", ErrCorruptFlat)
	case len(f.Ends) != numNodes, len(f.Lefts) != numNodes, len(f.Rights) != numNodes:
		return nil, fmt.Errorf("%w: node arrays differ in length", ErrCorruptFlat)
	case len(f.BoundsMin) != numNodes*f.Rows, len(f.BoundsMax) != numNodes*f.Rows:
		return nil, fmt.Errorf("%w: bounds arrays differ from node count", ErrCorruptFlat)
	case len(f.OldFromNew) != f.Cols:
		return nil, fmt.Errorf("%w: old-from-new map has length %d, want %d", ErrCorruptFlat, len(f.OldFromNew), f.Cols)
	}

	data, err := matrix.NewFromData(f.Rows, f.Cols, f.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFlat, err)
	}

	t := &Tree{
		data:       data,
		oldFromNew: f.OldFromNew,
		im:         im,
		leafSize:   f.LeafSize,
		nodes:      make([]nodeData, numNodes),
		boundsMin:  f.BoundsMin,
		boundsMax:  f.BoundsMax,
		stats:      make([]tree.Stat, numNodes),
	}

	for i := range numNodes {
		nd := nodeData{
			begin: f.Begins[i],
			end:   f.Ends[i],
			left:  f.Lefts[i],
			right: f.Rights[i],
		}

		if nd.begin < 0 || nd.end < nd.begin || int(nd.end) > f.Cols {
			return nil, fmt.Errorf("%w: node %d has range [%d, %d)", ErrCorruptFlat, i, nd.begin, nd.end)
		}

		if (nd.left < 0) != (nd.right < 0) {
			return nil, fmt.Errorf("%w: node %d has a single child", ErrCorruptFlat, i)
		}

		if nd.left >= 0 && (int(nd.left) >= numNodes || int(nd.right) >= numNodes) {
			return nil, fmt.Errorf("%w: node %d references child out of range", ErrCorruptFlat, i)
		}

		t.nodes[i] = nd
		t.stats[i].Bound = math.Inf(1)
	}

	return t, nil
}
