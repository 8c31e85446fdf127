// Package rann provides rank-approximate nearest neighbor search for Go.
//
// Rank approximation bounds the quality of each returned neighbor by its
// rank instead of its distance: every reported neighbor is, with
// probability at least alpha, among the top tau fraction of the reference
// set for its query. Sampling-backed tree traversals turn that guarantee
// into large prunes, which makes searches cheap where exact k-NN is not.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	searcher, _ := rann.NewFromPoints(points)      // dual-tree, tau 0.05, alpha 0.95
//	res, _ := searcher.Search(ctx, queries, 10)
//
//	for q := 0; q < res.NumQueries(); q++ {
//	    fmt.Println(res.Indices(q), res.Distances(q))
//	}
//
// Tuning the guarantee:
//
//	searcher, _ := rann.NewFromPoints(points,
//	    rann.WithTau(0.01),   // top 1% of the reference set
//	    rann.WithAlpha(0.99), // with 99% confidence
//	)
//
// # Search Modes
//
// Three modes trade speed against constant factors:
//
//	// DUAL-TREE (default): queries and references both tree-indexed.
//	// Best for large query batches.
//	rann.WithMode(rann.ModeDualTree)
//
//	// SINGLE-TREE: one traversal per query, parallel across queries.
//	rann.WithMode(rann.ModeSingleTree)
//
//	// NAIVE: no tree, one shared random sample scanned per query.
//	rann.WithMode(rann.ModeNaive)
//
// Setting Tau to 1 makes every mode exact.
//
// # Snapshots
//
// A searcher serializes to a single checksummed file and restores without
// rebuilding its tree:
//
//	searcher.SaveToFile(ctx, "refs.rann")
//	searcher, _ = rann.LoadFromFile(ctx, "refs.rann")
//
// # Key Features
//
//   - Probabilistic rank guarantee with tunable tau and alpha
//   - kd-tree backed dual-tree and single-tree traversals
//   - Nearest or furthest neighbor ordering over pluggable metrics
//   - Deterministic results for a fixed seed
//   - Compressed snapshots (LZ4, zstd) with atomic file replacement
package rann
