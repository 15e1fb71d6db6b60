package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/txp-network/txp/internal/config"
	"github.com/txp-network/txp/internal/infra/csvio"
	"github.com/txp-network/txp/internal/infra/sqlite"
)

// ─── Stored Runs ────────────────────────────────────────────────────────────
// Inspect runs recorded with --sqlite-out.

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsShowCmd)

	pf := runsCmd.PersistentFlags()
	pf.String("db", "", "Snapshot database (default output.sqlite_path from config)")
	pf.String("config", "", "Config file (default $TXP_HOME/config.toml)")
	runsCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list")
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs stored in a snapshot database",
	Long: `List the most recent runs stored with --sqlite-out, newest first.
Use "txp runs show RUN_ID" to print the final balances of one run.`,
	Args: cobra.NoArgs,
	RunE: runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("txp: --limit must be positive, got %d", limit)
	}

	db, err := openRunsDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs stored in %s.\n", db.Path())
		return nil
	}

	fmt.Fprintf(out, "%-36s  %-24s  %8s  %8s  %6s\n", "RUN", "STARTED", "RECORDS", "ACCOUNTS", "LOCKED")
	for _, r := range runs {
		locked, err := db.CountLocked(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("sqlite: count locked %s: %w", r.ID, err)
		}
		fmt.Fprintf(out, "%-36s  %-24s  %8d  %8d  %6d\n",
			r.ID, r.StartedAt.UTC().Format("2006-01-02T15:04:05Z"), r.Records, r.Accounts, locked)
	}
	return nil
}

// ─── runs show ──────────────────────────────────────────────────────────────

var runsShowCmd = &cobra.Command{
	Use:   "show RUN_ID",
	Short: "Print the stored balances of one run",
	Long: `Print the final balances stored for RUN_ID in the same CSV format the
main command writes.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunsShow,
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	db, err := openRunsDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if _, err := db.GetRun(ctx, args[0]); err != nil {
		if errors.Is(err, sqlite.ErrRunNotFound) {
			return fmt.Errorf("txp: run %q not found in %s", args[0], db.Path())
		}
		return err
	}
	accounts, err := db.ListSnapshots(ctx, args[0])
	if err != nil {
		return err
	}
	return csvio.NewWriter(cmd.OutOrStdout()).WriteAccounts(ctx, accounts)
}

// openRunsDB opens the database named by --db, falling back to the
// configured output.sqlite_path.
func openRunsDB(cmd *cobra.Command) (*sqlite.DB, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		path = cfg.Output.SQLitePath
	}
	if path == "" {
		return nil, errors.New("txp: no snapshot database, pass --db or set output.sqlite_path")
	}
	return sqlite.Open(path)
}
