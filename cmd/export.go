package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/killallgit/testimony-api/internal/models"
	"github.com/killallgit/testimony-api/internal/services/export"
	"github.com/killallgit/testimony-api/internal/services/testimonies"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export testimonies to an Excel workbook",
	Long: `Write testimonies and their tag frequencies to an .xlsx workbook.

Example:
  testimony-api export --output testimonios.xlsx --origin lausanne`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("output", "o", "testimonies.xlsx", "output file")
	exportCmd.Flags().String("origin", "", "only testimonies from this origin")
	exportCmd.Flags().String("status", "", "only testimonies with this transcript status")
	exportCmd.Flags().String("tag", "", "only testimonies carrying this tag")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	origin, _ := cmd.Flags().GetString("origin")
	status, _ := cmd.Flags().GetString("status")
	tag, _ := cmd.Flags().GetString("tag")

	filter := testimonies.ListFilter{Origin: origin, Tag: tag}
	if status != "" {
		s, ok := models.ParseTranscriptStatus(status)
		if !ok {
			return fmt.Errorf("unknown transcript status %q", status)
		}
		filter.Status = s
	}

	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := export.Collect(cmd.Context(), a.testimonies, filter)
	if err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	if err := export.WriteWorkbook(f, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d testimonies to %s\n", len(rows), output)
	return nil
}
