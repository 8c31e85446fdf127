package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/rann"
)

var version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "rann",
	Short: "Rank-approximate nearest neighbor search",
	Long: `rann finds approximate nearest neighbors with a probabilistic rank
guarantee: every returned neighbor ranks within the best tau fraction of
the reference set with probability at least alpha. A tau of 1 requests
exact search.

Reference and query sets are CSV files with one point per row and one
coordinate per column.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("rann version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress to stderr")
	rootCmd.AddCommand(versionCmd)
}

func buildLogger() *rann.Logger {
	if verbose {
		return rann.NewTextLogger(slog.LevelDebug)
	}

	return rann.NoopLogger()
}
