package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/killallgit/testimony-api/internal/services/indexer"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Backfill search chunks and summary embeddings",
	Long: `Index completed testimonies that have no transcript chunks and embed
summaries that have no embedding yet. Failures on single testimonies are
logged and counted; the sweep continues.

Example:
  testimony-api index --dry-run
  testimony-api index --limit 50`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().Int("limit", 0, "maximum testimonies per phase (0 for all)")
	indexCmd.Flags().Bool("dry-run", false, "report what would be indexed without writing")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.indexer == nil {
		return errors.New("indexing requires embeddings.api_key to be set")
	}

	report, err := a.indexer.Backfill(cmd.Context(), indexer.BackfillOptions{Limit: limit, DryRun: dryRun})
	if report != nil {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Transcripts: %d found, %d indexed (%d chunks)\n",
			report.TranscriptsFound, report.TranscriptsIndexed, report.ChunksWritten)
		fmt.Fprintf(out, "Summaries:   %d found, %d embedded\n", report.SummariesFound, report.SummariesEmbedded)
		fmt.Fprintf(out, "Failures:    %d\n", report.Failures)
		if dryRun {
			fmt.Fprintln(out, "Dry run, nothing was written")
		}
	}
	return err
}
