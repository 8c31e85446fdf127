package rann

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/rann/matrix"
	"github.com/hupe1980/rann/tree"
)

// Searcher answers rank-approximate nearest-neighbor queries over a fixed
// reference set: each returned candidate ranks, with probability at least
// Alpha, within the best Tau fraction of all references for its query.
// Tau of 1 turns every mode into exact search.
//
// A Searcher is safe for concurrent construction-free reads of its
// accessors, but individual searches must not overlap when the searcher was
// built in dual-tree mode, because dual traversal scribbles bookkeeping
// into tree nodes.
type Searcher struct {
	opts Options

	refTree tree.Tree
	refData *matrix.Matrix
	refMap  []int

	seed int64

	lastStats atomic.Pointer[SearchStats]
}

// SearchStats describes the sampling work done by one search call.
type SearchStats struct {
	// DistanceComputations counts the metric evaluations of the call.
	DistanceComputations int64

	// SamplesRequired is the per-query sample budget derived from the
	// tau and alpha settings and the reference count.
	SamplesRequired int

	// SamplingRatio is SamplesRequired over the reference count. A ratio
	// of 1 means the call ran exhaustively.
	SamplingRatio float64
}

// New builds a searcher over the given reference points. The matrix is
// borrowed in naive mode and copied into tree order otherwise; either way
// the caller must not mutate it while the searcher lives.
func New(data *matrix.Matrix, optFns ...func(o *Options)) (*Searcher, error) {
	opts := resolveOptions(optFns)
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if data == nil || data.Cols() == 0 {
		return nil, ErrEmptyReferenceSet
	}

	s := &Searcher{opts: opts, seed: searchSeed(opts.Seed)}

	start := time.Now()
	if opts.Mode.usesTree() {
		t, err := opts.treeBuilder()(data)
		opts.Metrics.RecordBuild(time.Since(start), err)
		if err != nil {
			return nil, fmt.Errorf("build reference tree: %w", err)
		}

		s.refTree = t
		s.refData = t.Dataset()
		s.refMap = t.OldFromNew()
	} else {
		s.refData = data
		opts.Metrics.RecordBuild(time.Since(start), nil)
	}

	opts.Logger.Info("searcher ready",
		"mode", opts.Mode.String(),
		"references", s.refData.Cols(),
		"dimension", s.refData.Rows(),
		"tau", opts.Tau,
		"alpha", opts.Alpha,
	)

	return s, nil
}

// NewFromPoints builds a searcher over row-oriented points, one point per
// slice.
func NewFromPoints(points [][]float64, optFns ...func(o *Options)) (*Searcher, error) {
	data, err := matrix.FromPoints(points)
	if err != nil {
		return nil, err
	}
	return New(data, optFns...)
}

// NewFromTree adopts an already built reference tree instead of building
// one. The tree's metric must agree with Options.Metric, and naive mode is
// rejected since it never consults a tree. The searcher takes over the
// tree's statistic slots.
func NewFromTree(t tree.Tree, optFns ...func(o *Options)) (*Searcher, error) {
	opts := resolveOptions(optFns)
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if !opts.Mode.usesTree() {
		return nil, fmt.Errorf("%w: naive mode does not take a reference tree", ErrInvalidMode)
	}

	if t == nil || t.Dataset() == nil || t.Dataset().Cols() == 0 {
		return nil, ErrEmptyReferenceSet
	}

	s := &Searcher{
		opts:    opts,
		refTree: t,
		refData: t.Dataset(),
		refMap:  t.OldFromNew(),
		seed:    searchSeed(opts.Seed),
	}

	opts.Logger.Info("searcher ready",
		"mode", opts.Mode.String(),
		"references", s.refData.Cols(),
		"dimension", s.refData.Rows(),
		"tau", opts.Tau,
		"alpha", opts.Alpha,
	)

	return s, nil
}

func searchSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return time.Now().UnixNano()
}

// Mode returns the configured search mode.
func (s *Searcher) Mode() Mode { return s.opts.Mode }

// NumReferences returns the number of reference points.
func (s *Searcher) NumReferences() int { return s.refData.Cols() }

// Dimension returns the point dimensionality.
func (s *Searcher) Dimension() int { return s.refData.Rows() }

// Tau returns the configured rank cutoff fraction.
func (s *Searcher) Tau() float64 { return s.opts.Tau }

// Alpha returns the configured success probability floor.
func (s *Searcher) Alpha() float64 { return s.opts.Alpha }

// Stats returns the sampling statistics of the most recent search call, or
// a zero snapshot before the first one. Overlapping searches overwrite it
// in completion order.
func (s *Searcher) Stats() SearchStats {
	if st := s.lastStats.Load(); st != nil {
		return *st
	}
	return SearchStats{}
}

// Search finds the k best reference candidates for every query column.
// Returned indices refer to the original reference ordering passed at
// construction. Queries with fewer than k reachable candidates keep the
// sentinel values in their trailing slots.
func (s *Searcher) Search(ctx context.Context, queries *matrix.Matrix, k int) (res *Result, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	nq := 0
	if queries != nil {
		nq = queries.Cols()
	}

	var distanceEvals int64
	defer func() {
		s.opts.Metrics.RecordSearch(k, nq, time.Since(start), err)
		s.opts.Logger.LogSearch(ctx, k, nq, distanceEvals, err)
	}()

	if err = s.validateQueries(queries, k); err != nil {
		return nil, err
	}

	res = newResult(k, nq, s.opts.SortPolicy.WorstDistance())

	var ru *rules
	switch s.opts.Mode {
	case ModeNaive:
		ru, err = s.searchNaive(ctx, queries, res, false)
	case ModeSingleTree:
		ru, err = s.searchSingle(ctx, queries, res, false)
	default:
		ru, err = s.searchDual(ctx, queries, res)
	}
	if ru != nil {
		distanceEvals = s.storeStats(ru)
	}
	if err != nil {
		return nil, err
	}

	return res, nil
}

// SearchAll finds, for every reference point, its k best candidates among
// the other reference points. Self-matches are excluded.
func (s *Searcher) SearchAll(ctx context.Context, k int) (res *Result, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	nq := s.refData.Cols()

	var distanceEvals int64
	defer func() {
		s.opts.Metrics.RecordSearch(k, nq, time.Since(start), err)
		s.opts.Logger.LogSearch(ctx, k, nq, distanceEvals, err)
	}()

	if k < 1 {
		err = ErrInvalidK
		return nil, err
	}

	res = newResult(k, nq, s.opts.SortPolicy.WorstDistance())

	var ru *rules
	switch s.opts.Mode {
	case ModeNaive:
		ru, err = s.searchNaive(ctx, s.refData, res, true)
	case ModeSingleTree:
		ru, err = s.searchSingle(ctx, s.refData, res, true)
	default:
		ru, err = s.dualTraverse(ctx, s.refTree, res, true)
	}
	if ru != nil {
		distanceEvals = s.storeStats(ru)
	}
	if err != nil {
		return nil, err
	}

	return res, nil
}

// SearchTree answers queries from an already built query tree. Only
// dual-tree mode accepts one; the tree's statistic slots are reset and
// rewritten during the traversal. Results come back in the original order
// of the points the query tree was built over.
func (s *Searcher) SearchTree(ctx context.Context, queryTree tree.Tree, k int) (res *Result, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	nq := 0
	if queryTree != nil && queryTree.Dataset() != nil {
		nq = queryTree.Dataset().Cols()
	}

	var distanceEvals int64
	defer func() {
		s.opts.Metrics.RecordSearch(k, nq, time.Since(start), err)
		s.opts.Logger.LogSearch(ctx, k, nq, distanceEvals, err)
	}()

	if s.opts.Mode != ModeDualTree {
		err = fmt.Errorf("%w: query trees require dual-tree mode", ErrInvalidMode)
		return nil, err
	}

	var queries *matrix.Matrix
	if queryTree != nil {
		queries = queryTree.Dataset()
	}
	if err = s.validateQueries(queries, k); err != nil {
		return nil, err
	}

	res = newResult(k, nq, s.opts.SortPolicy.WorstDistance())

	ru, terr := s.dualTraverse(ctx, queryTree, res, false)
	if ru != nil {
		distanceEvals = s.storeStats(ru)
	}
	if terr != nil {
		err = terr
		return nil, err
	}

	return res, nil
}

// storeStats publishes the pass statistics and returns the distance count
// for the deferred search log.
func (s *Searcher) storeStats(ru *rules) int64 {
	st := ru.stats()
	s.lastStats.Store(&st)
	return st.DistanceComputations
}

func (s *Searcher) validateQueries(queries *matrix.Matrix, k int) error {
	if k < 1 {
		return ErrInvalidK
	}
	if queries == nil || queries.Cols() == 0 {
		return ErrEmptyQuerySet
	}
	if queries.Rows() != s.refData.Rows() {
		return &ErrDimensionMismatch{Expected: s.refData.Rows(), Actual: queries.Rows()}
	}
	return nil
}

func (s *Searcher) newSearchRules(queries *matrix.Matrix, res *Result, sameSet, perQuerySamplers bool) *rules {
	return newRules(s.refData, queries, res, rulesConfig{
		metric:            s.opts.Metric,
		policy:            s.opts.SortPolicy,
		tau:               s.opts.Tau,
		alpha:             s.opts.Alpha,
		sampleAtLeaves:    s.opts.SampleAtLeaves,
		firstLeafExact:    s.opts.FirstLeafExact,
		singleSampleLimit: s.opts.SingleSampleLimit,
		sameSet:           sameSet,
		seed:              s.seed,
		perQuerySamplers:  perQuerySamplers,
	})
}

func (s *Searcher) logExhaustive(ctx context.Context, ru *rules) {
	if ru.exhaustive() {
		s.opts.Logger.DebugContext(ctx, "sampling budget covers the whole reference set; searching exhaustively",
			"samples", ru.numSamplesReqd,
			"references", s.refData.Cols(),
		)
	}
}

// searchNaive answers every query from one random reference sample. The
// sample is drawn once and shared; its size alone carries the probabilistic
// guarantee, so per-query draws would only cost extra randomness.
func (s *Searcher) searchNaive(ctx context.Context, queries *matrix.Matrix, res *Result, sameSet bool) (*rules, error) {
	ru := s.newSearchRules(queries, res, sameSet, false)
	s.logExhaustive(ctx, ru)

	sample := ru.sampler.SampleDistinct(nil, ru.numSamplesReqd, s.refData.Cols())

	err := s.forEachQuery(ctx, queries.Cols(), func(q int) {
		for _, r := range sample {
			ru.baseCase(q, r)
		}
	})

	return ru, err
}

// searchSingle recurses every query independently through the reference
// tree. In monochromatic searches the query matrix is the tree-ordered
// reference data, so results are scattered back to original positions.
func (s *Searcher) searchSingle(ctx context.Context, queries *matrix.Matrix, res *Result, sameSet bool) (*rules, error) {
	out := res
	if sameSet && s.refMap != nil {
		out = newResult(res.K(), queries.Cols(), s.opts.SortPolicy.WorstDistance())
	}

	ru := s.newSearchRules(queries, out, sameSet, true)
	s.logExhaustive(ctx, ru)

	root := s.refTree.Root()
	err := s.forEachQuery(ctx, queries.Cols(), func(q int) {
		singleTraverser{rules: ru}.traverse(q, root)
	})
	if err != nil {
		return ru, err
	}

	if out != res {
		s.scatter(out, res, s.refMap)
	} else {
		s.remapInPlace(res)
	}

	return ru, nil
}

// searchDual builds a query tree and co-recurses it against the reference
// tree.
func (s *Searcher) searchDual(ctx context.Context, queries *matrix.Matrix, res *Result) (*rules, error) {
	qTree, err := s.opts.treeBuilder()(queries)
	if err != nil {
		return nil, fmt.Errorf("build query tree: %w", err)
	}

	return s.dualTraverse(ctx, qTree, res, false)
}

// dualTraverse runs the dual-tree co-recursion against an already built
// query tree and writes results back in the query tree's original point
// order.
func (s *Searcher) dualTraverse(ctx context.Context, qTree tree.Tree, res *Result, sameSet bool) (*rules, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queries := qTree.Dataset()

	out := res
	if qTree.OldFromNew() != nil || s.refMap != nil {
		out = newResult(res.K(), queries.Cols(), s.opts.SortPolicy.WorstDistance())
	}

	ru := s.newSearchRules(queries, out, sameSet, false)
	s.logExhaustive(ctx, ru)

	qTree.ResetStatistics(s.opts.SortPolicy.WorstDistance())
	dualTraverser{rules: ru}.traverse(qTree.Root(), s.refTree.Root())

	if out != res {
		s.scatter(out, res, qTree.OldFromNew())
	}

	return ru, nil
}

// scatter copies tree-ordered work columns into caller query order, mapping
// reference indices back to original positions on the way.
func (s *Searcher) scatter(work, res *Result, queryMap []int) {
	k := res.K()

	for i := range work.NumQueries() {
		dst := i
		if queryMap != nil {
			dst = queryMap[i]
		}

		copy(res.distances[dst*k:(dst+1)*k], work.Distances(i))

		di := res.indices[dst*k : (dst+1)*k]
		for j, idx := range work.Indices(i) {
			if idx >= 0 && s.refMap != nil {
				idx = s.refMap[idx]
			}
			di[j] = idx
		}
	}
}

// remapInPlace rewrites reference indices to original positions for results
// that were produced directly in caller query order.
func (s *Searcher) remapInPlace(res *Result) {
	if s.refMap == nil {
		return
	}

	for i, idx := range res.indices {
		if idx >= 0 {
			res.indices[i] = s.refMap[idx]
		}
	}
}

// forEachQuery runs fn for every query index, fanning out across workers
// when parallelism allows. fn must only touch state owned by its query.
func (s *Searcher) forEachQuery(ctx context.Context, nq int, fn func(q int)) error {
	workers := s.opts.Parallelism
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > nq {
		workers = nq
	}

	if workers <= 1 {
		for q := 0; q < nq; q++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(q)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for q := 0; q < nq; q++ {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			fn(q)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return ctx.Err()
}
