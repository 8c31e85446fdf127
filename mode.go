package rann

import "fmt"

// Mode selects the search strategy. Dual-tree amortizes tree descent across
// whole groups of queries, single-tree recurses once per query, and naive
// skips trees entirely and answers every query from one random sample of the
// reference set.
type Mode uint8

const (
	// ModeDualTree traverses a query tree and the reference tree together.
	ModeDualTree Mode = iota

	// ModeSingleTree traverses the reference tree once per query point.
	ModeSingleTree

	// ModeNaive compares every query against a random reference sample
	// without any tree.
	ModeNaive
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeDualTree:
		return "dual-tree"
	case ModeSingleTree:
		return "single-tree"
	case ModeNaive:
		return "naive"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

func (m Mode) valid() bool {
	return m == ModeDualTree || m == ModeSingleTree || m == ModeNaive
}

func (m Mode) usesTree() bool {
	return m == ModeDualTree || m == ModeSingleTree
}

// ModeByName resolves a mode name as produced by Mode.String.
func ModeByName(name string) (Mode, bool) {
	switch name {
	case "dual-tree", "dual":
		return ModeDualTree, true
	case "single-tree", "single":
		return ModeSingleTree, true
	case "naive":
		return ModeNaive, true
	default:
		return 0, false
	}
}
