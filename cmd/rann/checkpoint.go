package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hupe1980/rann"
	"github.com/hupe1980/rann/checkpoint"
	"github.com/hupe1980/rann/persist"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Manage saved searchers",
}

var (
	saveBuild       buildFlags
	saveDir         string
	saveName        string
	saveReference   string
	saveRetain      int
	saveCompression string
	saveEncoding    string
)

var checkpointSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Build a searcher from a reference CSV and save it",
	Long: `Builds a searcher from a reference CSV and saves it as a new checkpoint
version. Lossy encodings (float32, float16) are only accepted in naive
mode, since tree modes store node bounds computed from the exact
coordinates.`,
	Args: cobra.NoArgs,
	RunE: runCheckpointSave,
}

var listDir string

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved checkpoints",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointList,
}

var (
	deleteDir  string
	deleteName string
)

var checkpointDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete every version of a checkpoint",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointDelete,
}

func init() {
	flags := checkpointSaveCmd.Flags()
	flags.StringVar(&saveDir, "dir", "", "checkpoint directory or s3://bucket/prefix")
	flags.StringVar(&saveName, "name", "", "checkpoint name")
	flags.StringVarP(&saveReference, "reference", "r", "", "reference point CSV")
	flags.IntVar(&saveRetain, "retain", 0, "keep only the newest versions, 0 keeps all")
	flags.StringVar(&saveCompression, "compression", persist.CompressionZSTD.String(), "snapshot compression: none, lz4 or zstd")
	flags.StringVar(&saveEncoding, "encoding", persist.EncodingFloat64.String(), "coordinate encoding: float64, float32 or float16")
	saveBuild.register(flags)
	_ = checkpointSaveCmd.MarkFlagRequired("dir")
	_ = checkpointSaveCmd.MarkFlagRequired("name")
	_ = checkpointSaveCmd.MarkFlagRequired("reference")

	checkpointListCmd.Flags().StringVar(&listDir, "dir", "", "checkpoint directory or s3://bucket/prefix")
	_ = checkpointListCmd.MarkFlagRequired("dir")

	checkpointDeleteCmd.Flags().StringVar(&deleteDir, "dir", "", "checkpoint directory or s3://bucket/prefix")
	checkpointDeleteCmd.Flags().StringVar(&deleteName, "name", "", "checkpoint name")
	_ = checkpointDeleteCmd.MarkFlagRequired("dir")
	_ = checkpointDeleteCmd.MarkFlagRequired("name")

	checkpointCmd.AddCommand(checkpointSaveCmd, checkpointListCmd, checkpointDeleteCmd)
	rootCmd.AddCommand(checkpointCmd)
}

func runCheckpointSave(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := buildLogger()

	store, err := openStore(ctx, saveDir)
	if err != nil {
		return err
	}

	compression, err := persist.CompressionByName(saveCompression)
	if err != nil {
		return err
	}
	encoding, err := persist.EncodingByName(saveEncoding)
	if err != nil {
		return err
	}

	data, err := readPointsCSV(saveReference)
	if err != nil {
		return err
	}

	optFns, err := saveBuild.options(logger)
	if err != nil {
		return err
	}
	s, err := rann.New(data, optFns...)
	if err != nil {
		return err
	}

	mgr := checkpoint.NewManager(store, func(o *checkpoint.ManagerOptions) {
		o.Retain = saveRetain
		o.Logger = logger
	})

	manifest, err := mgr.Save(ctx, s, saveName, func(o *rann.SnapshotOptions) {
		o.Compression = compression
		o.Encoding = encoding
	})
	if err != nil {
		return err
	}

	cmd.Printf("saved %s version %d (%d points, %s)\n",
		manifest.Name, manifest.Version, manifest.References, humanize.IBytes(uint64(manifest.SnapshotSize)))

	return nil
}

func runCheckpointList(cmd *cobra.Command, _ []string) error {
	store, err := openStore(cmd.Context(), listDir)
	if err != nil {
		return err
	}
	mgr := checkpoint.NewManager(store, func(o *checkpoint.ManagerOptions) {
		o.Logger = buildLogger()
	})

	manifests, err := mgr.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(manifests) == 0 {
		cmd.Println("No checkpoints found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tCREATED\tMODE\tPOINTS\tDIM\tSIZE")
	for _, m := range manifests {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%d\t%s\n",
			m.Name, m.Version, m.CreatedAt.Format(time.RFC3339), m.Mode,
			m.References, m.Dimension, humanize.IBytes(uint64(m.SnapshotSize)))
	}

	return w.Flush()
}

func runCheckpointDelete(cmd *cobra.Command, _ []string) error {
	store, err := openStore(cmd.Context(), deleteDir)
	if err != nil {
		return err
	}
	mgr := checkpoint.NewManager(store, func(o *checkpoint.ManagerOptions) {
		o.Logger = buildLogger()
	})

	if err := mgr.Delete(cmd.Context(), deleteName); err != nil {
		return err
	}

	cmd.Printf("deleted %s\n", deleteName)

	return nil
}
