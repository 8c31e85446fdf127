package rann

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/rann/matrix"
	"github.com/hupe1980/rann/metric"
	"github.com/hupe1980/rann/neighbor"
	"github.com/hupe1980/rann/sampling"
	"github.com/hupe1980/rann/tree"
)

// scorePruned marks a node or node pair the traversal must not visit.
// Traversal priorities of visitable nodes are always finite.
var scorePruned = math.Inf(1)

// sampleScratch recycles the index buffers used while drawing reference
// samples inside hot scoring paths.
var sampleScratch = sync.Pool{
	New: func() any {
		buf := make([]int, 0, 64)
		return &buf
	},
}

// mixSeed derives independent stream seeds from one base seed. The constant
// is the 64-bit golden gamma used by splittable generators.
func mixSeed(seed, stream int64) int64 {
	return int64(uint64(seed) + uint64(stream+1)*0x9E3779B97F4A7C15)
}

type rulesConfig struct {
	metric            metric.Metric
	policy            neighbor.SortPolicy
	tau               float64
	alpha             float64
	sampleAtLeaves    bool
	firstLeafExact    bool
	singleSampleLimit int
	sameSet           bool
	seed              int64
	perQuerySamplers  bool
}

// rules carries the shared state of one search pass: the candidate lists,
// the sampling budgets and the scoring decisions that drive every traversal
// mode. One instance serves exactly one call.
type rules struct {
	refs    *matrix.Matrix
	queries *matrix.Matrix
	metric  metric.Metric
	policy  neighbor.SortPolicy

	sameSet bool

	numSamplesReqd    int
	samplingRatio     float64
	sampleAtLeaves    bool
	firstLeafExact    bool
	singleSampleLimit int

	lists          []neighbor.List
	numSamplesMade []int

	sampler  *sampling.Sampler
	samplers []*sampling.Sampler

	distanceEvals atomic.Int64
}

// newRules binds a search pass to its output buffers. The candidate lists
// write through the Result columns directly, so no copy-out pass exists.
func newRules(refs, queries *matrix.Matrix, res *Result, cfg rulesConfig) *rules {
	n := refs.Cols()
	nq := queries.Cols()

	ru := &rules{
		refs:              refs,
		queries:           queries,
		metric:            cfg.metric,
		policy:            cfg.policy,
		sameSet:           cfg.sameSet,
		sampleAtLeaves:    cfg.sampleAtLeaves,
		firstLeafExact:    cfg.firstLeafExact,
		singleSampleLimit: cfg.singleSampleLimit,
		lists:             make([]neighbor.List, nq),
		numSamplesMade:    make([]int, nq),
	}

	ru.numSamplesReqd = sampling.MinimumSamplesRequired(n, res.K(), cfg.tau, cfg.alpha)
	ru.samplingRatio = float64(ru.numSamplesReqd) / float64(n)

	for q := range ru.lists {
		ru.lists[q] = neighbor.NewList(cfg.policy, res.Distances(q), res.Indices(q))
	}

	if cfg.perQuerySamplers {
		// Independent per-query streams keep results identical no matter
		// how queries are scheduled across workers.
		ru.samplers = make([]*sampling.Sampler, nq)
		for q := range ru.samplers {
			ru.samplers[q] = sampling.NewSampler(mixSeed(cfg.seed, int64(q)))
		}
	} else {
		ru.sampler = sampling.NewSampler(mixSeed(cfg.seed, -1))
	}

	return ru
}

// exhaustive reports whether the sampling budget covers the whole reference
// set, i.e. the pass runs as exact search.
func (ru *rules) exhaustive() bool {
	return ru.numSamplesReqd >= ru.refs.Cols()
}

func (ru *rules) distanceEvaluations() int64 {
	return ru.distanceEvals.Load()
}

// stats snapshots the pass counters for the searcher's Stats accessor.
func (ru *rules) stats() SearchStats {
	return SearchStats{
		DistanceComputations: ru.distanceEvaluations(),
		SamplesRequired:      ru.numSamplesReqd,
		SamplingRatio:        ru.samplingRatio,
	}
}

func (ru *rules) samplerFor(q int) *sampling.Sampler {
	if ru.samplers != nil {
		return ru.samplers[q]
	}
	return ru.sampler
}

// baseCase evaluates one query/reference pair, offers it to the query's
// candidate list and counts the sample. It returns the query's updated
// pruning bound, the distance of its k-th best candidate so far.
func (ru *rules) baseCase(q, r int) float64 {
	if ru.sameSet && q == r {
		return ru.lists[q].WorstDistance()
	}

	d := ru.metric.Evaluate(ru.queries.Col(q), ru.refs.Col(r))
	ru.distanceEvals.Add(1)

	ru.lists[q].TryInsert(d, r)
	ru.numSamplesMade[q]++

	return ru.lists[q].WorstDistance()
}

// scoreSingle decides whether a reference node can still matter for one
// query. It returns the node's traversal priority, or scorePruned when the
// node was pruned outright or consumed by sampling.
func (ru *rules) scoreSingle(q int, node tree.Node) float64 {
	distance := ru.policy.BestPointToNode(ru.queries.Col(q), node)
	return ru.score(q, node, distance, ru.lists[q].WorstDistance())
}

// rescoreSingle re-checks a previously scored node against the query's
// current bound without touching the geometry again.
func (ru *rules) rescoreSingle(q int, node tree.Node, oldScore float64) float64 {
	if oldScore == scorePruned {
		return oldScore
	}

	return ru.score(q, node, ru.policy.Priority(oldScore), ru.lists[q].WorstDistance())
}

func (ru *rules) score(q int, node tree.Node, distance, best float64) float64 {
	if ru.policy.IsBetter(distance, best) && ru.numSamplesMade[q] < ru.numSamplesReqd {
		// The node could improve the list and the query still owes
		// samples, so it cannot be pruned outright. Try to approximate it
		// by sampling instead of descending.

		if ru.firstLeafExact && ru.numSamplesMade[q] == 0 {
			// Visit the first leaf exactly; near-duplicates are found
			// before any sampling happens.
			return ru.policy.Priority(distance)
		}

		samplesReqd := int(math.Ceil(ru.samplingRatio * float64(node.NumDescendants())))
		if remaining := ru.numSamplesReqd - ru.numSamplesMade[q]; samplesReqd > remaining {
			samplesReqd = remaining
		}

		if !node.IsLeaf() {
			if samplesReqd > ru.singleSampleLimit {
				return ru.policy.Priority(distance)
			}

			ru.sampleInto(ru.samplerFor(q), q, node, samplesReqd)
			return scorePruned
		}

		if ru.sampleAtLeaves {
			ru.sampleInto(ru.samplerFor(q), q, node, samplesReqd)
			return scorePruned
		}

		// Leaves are scanned in full by the traverser.
		return ru.policy.Priority(distance)
	}

	// Pruned, either by distance or by a met sample budget. Credit the
	// samples the subtree would have contributed so the budget accounting
	// stays honest.
	ru.numSamplesMade[q] += int(math.Floor(ru.samplingRatio * float64(node.NumDescendants())))

	return scorePruned
}

// sampleInto runs base cases for count distinct points drawn from the
// node's subtree range.
func (ru *rules) sampleInto(smp *sampling.Sampler, q int, node tree.Node, count int) {
	begin, end := node.PointRange()

	bufp := sampleScratch.Get().(*[]int)
	buf := smp.SampleDistinct((*bufp)[:0], count, end-begin)
	for _, off := range buf {
		ru.baseCase(q, begin+off)
	}
	*bufp = buf
	sampleScratch.Put(bufp)
}

// scoreDual decides whether a query node/reference node pair can be pruned,
// refreshing the query node's statistics on the way.
func (ru *rules) scoreDual(qNode, rNode tree.Node) float64 {
	distance := ru.policy.BestNodeToNode(qNode, rNode)
	ru.liftSamplesMade(qNode)
	return ru.scorePair(qNode, rNode, distance, ru.refreshBound(qNode))
}

// rescoreDual re-checks a node pair against the query node's current
// statistics without recomputing the pair geometry.
func (ru *rules) rescoreDual(qNode, rNode tree.Node, oldScore float64) float64 {
	if oldScore == scorePruned {
		return oldScore
	}

	ru.liftSamplesMade(qNode)
	return ru.scorePair(qNode, rNode, ru.policy.Priority(oldScore), ru.refreshBound(qNode))
}

func (ru *rules) scorePair(qNode, rNode tree.Node, distance, best float64) float64 {
	stat := qNode.Stat()

	if ru.policy.IsBetter(distance, best) && stat.SamplesMade < ru.numSamplesReqd {
		if ru.firstLeafExact && stat.SamplesMade == 0 {
			ru.pushDown(qNode)
			return ru.policy.Priority(distance)
		}

		samplesReqd := int(math.Ceil(ru.samplingRatio * float64(rNode.NumDescendants())))

		if samplesReqd > ru.singleSampleLimit && !rNode.IsLeaf() {
			// Too many samples for one draw; the traversal descends
			// instead, so the children must see what has been credited at
			// this level.
			ru.pushDown(qNode)
			return ru.policy.Priority(distance)
		}

		if !rNode.IsLeaf() || ru.sampleAtLeaves {
			ru.samplePairs(qNode, rNode, samplesReqd)
			stat.SamplesMade += samplesReqd
			return scorePruned
		}

		// Reference leaf scans stay exact; descend.
		ru.pushDown(qNode)
		return ru.policy.Priority(distance)
	}

	stat.SamplesMade += int(math.Floor(ru.samplingRatio * float64(rNode.NumDescendants())))

	return scorePruned
}

// samplePairs draws an independent reference sample for every query point in
// the query subtree.
func (ru *rules) samplePairs(qNode, rNode tree.Node, count int) {
	qBegin, qEnd := qNode.PointRange()
	rBegin, rEnd := rNode.PointRange()
	population := rEnd - rBegin

	bufp := sampleScratch.Get().(*[]int)
	buf := *bufp
	for q := qBegin; q < qEnd; q++ {
		buf = ru.sampler.SampleDistinct(buf[:0], count, population)
		for _, off := range buf {
			ru.baseCase(q, rBegin+off)
		}
	}
	*bufp = buf
	sampleScratch.Put(bufp)
}

// liftSamplesMade raises the query node's sample count to the weakest
// guarantee provably shared by every query in its subtree: the minimum over
// child statistics, or over per-point counts at a leaf.
func (ru *rules) liftSamplesMade(qNode tree.Node) {
	stat := qNode.Stat()
	lifted := math.MaxInt

	if qNode.IsLeaf() {
		begin, end := qNode.PointRange()
		for q := begin; q < end; q++ {
			if ru.numSamplesMade[q] < lifted {
				lifted = ru.numSamplesMade[q]
			}
		}
	} else {
		for i := range qNode.NumChildren() {
			if s := qNode.Child(i).Stat().SamplesMade; s < lifted {
				lifted = s
			}
		}
	}

	if lifted != math.MaxInt && lifted > stat.SamplesMade {
		stat.SamplesMade = lifted
	}
}

// refreshBound recomputes the query node's pruning bound: no reference
// scoring worse than the bound can enter any descendant query's candidate
// list. Two safe estimates are combined, the worst list bound anywhere in
// the subtree and the best own point's bound relaxed by twice the node
// radius, which covers every other descendant through the triangle
// inequality.
func (ru *rules) refreshBound(qNode tree.Node) float64 {
	stat := qNode.Stat()

	worst := ru.policy.BestDistance()
	best := ru.policy.WorstDistance()

	if qNode.IsLeaf() {
		begin, end := qNode.PointRange()
		for q := begin; q < end; q++ {
			d := ru.lists[q].WorstDistance()
			if ru.policy.IsBetter(d, best) {
				best = d
			}
			if ru.policy.IsBetter(worst, d) {
				worst = d
			}
		}
	}

	for i := range qNode.NumChildren() {
		if b := qNode.Child(i).Stat().Bound; ru.policy.IsBetter(worst, b) {
			worst = b
		}
	}

	bound := worst
	if relaxed := ru.policy.RelaxBound(best, 2*qNode.FurthestDescendantDistance()); ru.policy.IsBetter(relaxed, bound) {
		bound = relaxed
	}

	// A bound never loosens once tightened; descents may have pushed a
	// tighter parent bound in already.
	if ru.policy.IsBetter(bound, stat.Bound) {
		stat.Bound = bound
	}

	return stat.Bound
}

// pushDown shares the query node's statistics with its children ahead of a
// descent, so sibling subtree visits start from the credits and bounds
// already established at this level.
func (ru *rules) pushDown(qNode tree.Node) {
	stat := qNode.Stat()

	for i := range qNode.NumChildren() {
		child := qNode.Child(i).Stat()
		if stat.SamplesMade > child.SamplesMade {
			child.SamplesMade = stat.SamplesMade
		}
		if ru.policy.IsBetter(stat.Bound, child.Bound) {
			child.Bound = stat.Bound
		}
	}
}
