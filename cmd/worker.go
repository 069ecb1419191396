package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run transcription workers without the HTTP API",
	Long: `Run a pool of transcription workers against the shared job queue.

Use this to scale processing separately from the API; run the API with
"serve --no-workers" in that setup.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().Int("workers", 0, "number of workers (overrides processing.workers)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt("workers"); n > 0 {
		cfg.Processing.Workers = n
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	pool := a.workerPool()
	if err := pool.Start(ctx); err != nil {
		return err
	}

	janitor := a.cleanupService()
	janitor.Start(ctx)

	<-ctx.Done()
	log.Info("Stopping workers")
	janitor.Stop()
	pool.Stop()

	stats := pool.Stats()
	log.WithField("processed", stats.Processed).
		WithField("succeeded", stats.Succeeded).
		WithField("failed", stats.Failed).
		Info("Workers stopped")
	return nil
}
