// Package testutil provides testing utilities for rank-approximate search.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random datasets, computing exact
// neighbors as ground truth, and measuring ranks and recall.
//
// # Random Dataset Generation
//
//	rng := testutil.NewRNG(seed)
//	points := rng.UniformPoints(1000, 8)   // uniform [0, 1)
//	data := rng.GaussianMatrix(1000, 8)    // standard normal
//
// # Exact Search (Ground Truth)
//
//	indices, distances := testutil.BruteForce(refs, queries, k, metric.Euclidean{}, neighbor.Nearest{}, false)
//
// # Rank and Recall Verification
//
//	rank := testutil.RankOf(refs, query, ref, metric.Euclidean{}, neighbor.Nearest{}, -1)
//	recall := testutil.Recall(exact, approximate)
package testutil
