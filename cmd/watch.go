package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/killallgit/testimony-api/internal/services/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Ingest audio files dropped into an inbox directory",
	Long: `Watch an inbox directory and ingest every supported audio file placed
in it. Ingested and duplicate files move to processed/, rejected files
move to failed/.

Example:
  testimony-api watch --inbox /srv/inbox --origin lausanne`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("inbox", "", "inbox directory (overrides watcher.inbox_dir)")
	watchCmd.Flags().String("origin", "", "origin for ingested files (overrides watcher.default_origin)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := watcher.OptionsFromConfig(cfg.Watcher)
	if inbox, _ := cmd.Flags().GetString("inbox"); inbox != "" {
		opts.InboxDir = inbox
	}
	if origin, _ := cmd.Flags().GetString("origin"); origin != "" {
		opts.Origin = origin
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	w, err := watcher.New(opts, a.gateway(), log)
	if err != nil {
		return err
	}
	log.WithField("inbox", opts.InboxDir).Info("Watching inbox")
	return w.Run(ctx)
}
