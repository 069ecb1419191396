package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/killallgit/testimony-api/api"
	"github.com/killallgit/testimony-api/internal/services/workers"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the Testimony API server with the configured settings.

Unless disabled, the server also runs an embedded transcription worker
pool and the temp file cleanup service.

Example:
  testimony-api serve
  testimony-api serve --port 9090
  testimony-api serve --no-workers`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "server host (overrides config)")
	serveCmd.Flags().Int("port", 0, "server port (overrides config)")
	serveCmd.Flags().Bool("no-workers", false, "do not run the embedded worker pool")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}
	noWorkers, _ := cmd.Flags().GetBool("no-workers")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var pool *workers.WorkerPool
	if cfg.Server.EmbeddedWorkers && !noWorkers {
		pool = a.workerPool()
		if err := pool.Start(ctx); err != nil {
			return err
		}
		defer pool.Stop()
	}

	janitor := a.cleanupService()
	janitor.Start(ctx)
	defer janitor.Stop()

	server := api.NewServer(cfg.Server, cfg.RateLimiting, a.apiDependencies(pool), log)
	if err := server.Initialize(); err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server")
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("Server stopped unexpectedly")
			return err
		}
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
		return err
	}

	log.Info("Server gracefully stopped")
	return nil
}
