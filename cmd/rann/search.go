package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/rann"
	"github.com/hupe1980/rann/checkpoint"
)

var (
	searchBuild         buildFlags
	searchReferencePath string
	searchQueryPath     string
	searchCheckpointDir string
	searchName          string
	searchK             int
	searchNeighborsPath string
	searchDistancesPath string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find the k approximate nearest neighbors of every query point",
	Long: `Searches a reference set for the k approximate nearest neighbors of every
query point. Without --query the reference set queries itself and each
point's own entry is left out of its row.

The reference set comes from a CSV file via --reference, or from a saved
checkpoint via --checkpoint. Checkpoints carry their search configuration
with them, so of the tuning flags only --seed and --parallelism apply when
loading one.

Results go to stdout unless --neighbors or --distances name output files.`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	flags := searchCmd.Flags()
	flags.StringVarP(&searchReferencePath, "reference", "r", "", "reference point CSV")
	flags.StringVarP(&searchQueryPath, "query", "q", "", "query point CSV, defaults to the reference set")
	flags.StringVar(&searchCheckpointDir, "checkpoint", "", "checkpoint directory or s3://bucket/prefix to load the searcher from")
	flags.StringVar(&searchName, "name", "", "checkpoint name, defaults to the current one")
	flags.IntVarP(&searchK, "k", "k", 0, "number of neighbors per query")
	flags.StringVarP(&searchNeighborsPath, "neighbors", "n", "", "neighbor index output CSV")
	flags.StringVarP(&searchDistancesPath, "distances", "d", "", "neighbor distance output CSV")
	searchBuild.register(flags)

	_ = searchCmd.MarkFlagRequired("k")
	searchCmd.MarkFlagsOneRequired("reference", "checkpoint")
	searchCmd.MarkFlagsMutuallyExclusive("reference", "checkpoint")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := buildLogger()

	var (
		s   *rann.Searcher
		err error
	)

	if searchCheckpointDir != "" {
		store, storeErr := openStore(ctx, searchCheckpointDir)
		if storeErr != nil {
			return storeErr
		}
		mgr := checkpoint.NewManager(store, func(o *checkpoint.ManagerOptions) {
			o.Logger = logger
		})
		s, err = mgr.Load(ctx, searchName, func(o *rann.Options) {
			o.Seed = searchBuild.seed
			o.Parallelism = searchBuild.parallelism
			o.Logger = logger
		})
	} else {
		s, err = buildSearcher(logger)
	}
	if err != nil {
		return err
	}

	var res *rann.Result
	start := time.Now()
	if searchQueryPath == "" {
		res, err = s.SearchAll(ctx, searchK)
	} else {
		queries, qErr := readPointsCSV(searchQueryPath)
		if qErr != nil {
			return qErr
		}
		res, err = s.Search(ctx, queries, searchK)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if err := writeResult(cmd, res); err != nil {
		return err
	}

	cmd.Printf("%d queries, k=%d, %s mode, %s\n", res.NumQueries(), res.K(), s.Mode(), elapsed.Round(time.Millisecond))

	return nil
}

func buildSearcher(logger *rann.Logger) (*rann.Searcher, error) {
	data, err := readPointsCSV(searchReferencePath)
	if err != nil {
		return nil, err
	}

	optFns, err := searchBuild.options(logger)
	if err != nil {
		return nil, err
	}

	return rann.New(data, optFns...)
}

func writeResult(cmd *cobra.Command, res *rann.Result) error {
	wrote := false
	if searchNeighborsPath != "" {
		if err := writeNeighborsCSV(searchNeighborsPath, res); err != nil {
			return err
		}
		wrote = true
	}
	if searchDistancesPath != "" {
		if err := writeDistancesCSV(searchDistancesPath, res); err != nil {
			return err
		}
		wrote = true
	}
	if wrote {
		return nil
	}

	for q := range res.NumQueries() {
		indices := res.Indices(q)
		distances := res.Distances(q)

		cmd.Printf("%d:", q)
		for i := range indices {
			cmd.Printf(" %d (%.4f)", indices[i], distances[i])
		}
		cmd.Println()
	}

	return nil
}
