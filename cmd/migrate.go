package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/killallgit/testimony-api/internal/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Manage the database schema for the Testimony API.

Available subcommands:
  up      - Create or update every table
  status  - Show which tables exist`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Create or update every table",
	Long: `Apply the schema for all models.

Tables, columns and indexes are created when missing. On postgres the
vector extension is enabled first.`,
	RunE: runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long:  `Display the current status of the schema: every expected table and whether it exists.`,
	RunE:  runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func openDatabase(cmd *cobra.Command) (*database.DB, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return database.FromConfig(cfg.Database)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	db, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	db, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	tables := db.Tables()
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	pending := 0
	for _, name := range names {
		state := "ok"
		if !tables[name] {
			state = "missing"
			pending++
		}
		fmt.Fprintf(out, "  %-24s %s\n", name, state)
	}
	if pending > 0 {
		fmt.Fprintf(out, "%d table(s) missing, run \"migrate up\"\n", pending)
	}
	return nil
}
