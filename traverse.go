package rann

import (
	"sort"

	"github.com/hupe1980/rann/tree"
)

// singleTraverser drives one query point down the reference tree, visiting
// more promising subtrees first and re-checking deferred subtrees against
// the bounds that tightened in between.
type singleTraverser struct {
	rules *rules
}

func (t singleTraverser) traverse(q int, node tree.Node) {
	if node.IsLeaf() {
		begin, end := node.PointRange()
		for r := begin; r < end; r++ {
			t.rules.baseCase(q, r)
		}
		return
	}

	if node.NumChildren() == 2 {
		// Binary fast path; kd-trees never take the generic one.
		left, right := node.Child(0), node.Child(1)
		leftScore := t.rules.scoreSingle(q, left)
		rightScore := t.rules.scoreSingle(q, right)

		if leftScore <= rightScore {
			if leftScore != scorePruned {
				t.traverse(q, left)
			}
			if rightScore = t.rules.rescoreSingle(q, right, rightScore); rightScore != scorePruned {
				t.traverse(q, right)
			}
			return
		}

		t.traverse(q, right)
		if leftScore = t.rules.rescoreSingle(q, left, leftScore); leftScore != scorePruned {
			t.traverse(q, left)
		}
		return
	}

	n := node.NumChildren()
	scores := make([]float64, n)
	order := make([]int, n)
	for i := range order {
		order[i] = i
		scores[i] = t.rules.scoreSingle(q, node.Child(i))
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	for visited, idx := range order {
		s := scores[idx]
		if visited > 0 {
			s = t.rules.rescoreSingle(q, node.Child(idx), s)
		}
		if s != scorePruned {
			t.traverse(q, node.Child(idx))
		}
	}
}

// dualTraverser walks the query tree and the reference tree together. Pairs
// of leaves run exhaustive scans gated per query point; otherwise the side
// expected to pay off more is expanded, reference side best pair first.
type dualTraverser struct {
	rules *rules
}

func (t dualTraverser) traverse(qNode, rNode tree.Node) {
	if qNode.IsLeaf() && rNode.IsLeaf() {
		qBegin, qEnd := qNode.PointRange()
		rBegin, rEnd := rNode.PointRange()

		for q := qBegin; q < qEnd; q++ {
			// The point-level score may consume the leaf by sampling, or
			// prune it against the query's own bound.
			if t.rules.scoreSingle(q, rNode) == scorePruned {
				continue
			}
			for r := rBegin; r < rEnd; r++ {
				t.rules.baseCase(q, r)
			}
		}
		return
	}

	if !qNode.IsLeaf() && (rNode.IsLeaf() || qNode.NumDescendants() > 3*rNode.NumDescendants()) {
		// Expand the query side. Visit order does not matter here since
		// every child must face the reference node anyway.
		for i := range qNode.NumChildren() {
			child := qNode.Child(i)
			if t.rules.scoreDual(child, rNode) != scorePruned {
				t.traverse(child, rNode)
			}
		}

		// The children now hold the tighter statistics; fold them back up.
		t.rules.liftSamplesMade(qNode)
		return
	}

	if rNode.NumChildren() == 2 {
		left, right := rNode.Child(0), rNode.Child(1)
		leftScore := t.rules.scoreDual(qNode, left)
		rightScore := t.rules.scoreDual(qNode, right)

		if leftScore <= rightScore {
			if leftScore != scorePruned {
				t.traverse(qNode, left)
			}
			if rightScore = t.rules.rescoreDual(qNode, right, rightScore); rightScore != scorePruned {
				t.traverse(qNode, right)
			}
			return
		}

		t.traverse(qNode, right)
		if leftScore = t.rules.rescoreDual(qNode, left, leftScore); leftScore != scorePruned {
			t.traverse(qNode, left)
		}
		return
	}

	n := rNode.NumChildren()
	scores := make([]float64, n)
	order := make([]int, n)
	for i := range order {
		order[i] = i
		scores[i] = t.rules.scoreDual(qNode, rNode.Child(i))
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	for visited, idx := range order {
		s := scores[idx]
		if visited > 0 {
			s = t.rules.rescoreDual(qNode, rNode.Child(idx), s)
		}
		if s != scorePruned {
			t.traverse(qNode, rNode.Child(idx))
		}
	}
}
