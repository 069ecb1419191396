package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/killallgit/testimony-api/internal/services/maintenance"
)

var resummarizeCmd = &cobra.Command{
	Use:   "resummarize",
	Short: "Regenerate summaries with the current prompt",
	Long: `Regenerate the summary of every completed testimony whose summary was
not produced by the current prompt. Summary embeddings are refreshed when
search is configured.

Example:
  testimony-api resummarize --dry-run --limit 5`,
	RunE: runResummarize,
}

var stripSectionsCmd = &cobra.Command{
	Use:   "strip-sections",
	Short: "Remove legacy sections from stored summaries",
	Long: `Rewrite summaries produced by older prompts, dropping the sections the
current summary format no longer carries.`,
	RunE: runStripSections,
}

func init() {
	for _, c := range []*cobra.Command{resummarizeCmd, stripSectionsCmd} {
		rootCmd.AddCommand(c)
		c.Flags().Bool("dry-run", false, "show changes without writing them")
		c.Flags().Int("limit", 0, "maximum testimonies to process (0 for all)")
	}
}

func maintenanceOptions(cmd *cobra.Command) maintenance.Options {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	limit, _ := cmd.Flags().GetInt("limit")
	return maintenance.Options{DryRun: dryRun, Limit: limit}
}

func runResummarize(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var embedder maintenance.SummaryEmbedder
	if a.indexer != nil {
		embedder = a.indexer
	}

	opts := maintenanceOptions(cmd)
	report, err := maintenance.NewResummarizer(a.testimonies, a.engine, embedder, log).Run(cmd.Context(), opts)
	if report != nil {
		printReport(cmd.OutOrStdout(), report, opts.DryRun)
	}
	return err
}

func runStripSections(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := maintenanceOptions(cmd)
	report, err := maintenance.StripSections(cmd.Context(), a.testimonies, opts, log)
	if report != nil {
		printReport(cmd.OutOrStdout(), report, opts.DryRun)
	}
	return err
}

func printReport(out io.Writer, r *maintenance.Report, dryRun bool) {
	if dryRun {
		for _, c := range r.Changes {
			fmt.Fprintf(out, "--- testimony %d\n%s\n\n", c.TestimonyID, c.After)
		}
	}
	fmt.Fprintf(out, "Candidates: %d  Updated: %d  Skipped: %d  Failed: %d\n",
		r.Candidates, r.Updated, r.Skipped, r.Failed)
	if dryRun {
		fmt.Fprintln(out, "Dry run, nothing was written")
	}
}
