package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [version]",
	Short: "Apply schema migrations",
	Long: `Applies pending schema migrations up to the given version, or to the
newest version when omitted. Each version runs in its own transaction;
on failure the already-applied versions stay in place.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrate,
}

var rollbackYes bool

var rollbackCmd = &cobra.Command{
	Use:   "rollback [version]",
	Short: "Roll the schema back to a version",
	Long: `Applies rollback scripts in reverse order down to the given version.
Versions without rollback scripts abort the call before any work.`,
	Args: cobra.ExactArgs(1),
	RunE: runRollback,
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show applied migrations",
	RunE:  runHistory,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate schema integrity",
	Long:  `Checks that every table and column the application depends on exists.`,
	RunE:  runValidate,
}

func init() {
	rollbackCmd.Flags().BoolVarP(&rollbackYes, "yes", "y", false, "skip confirmation")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "limit shown records (0 = all)")
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(validateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}
	ctx := context.Background()

	if len(args) == 0 {
		if err := persistence.InitializeSchema(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	} else {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		if err := persistence.MigrateToVersion(ctx, version); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	current, err := persistence.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Schema is at version %d\n", current)
	return nil
}

func runRollback(cmd *cobra.Command, args []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}
	if !rollbackYes {
		return errors.New("rollback removes schema objects; re-run with --yes to confirm")
	}

	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q", args[0])
	}

	ctx := context.Background()
	if err := persistence.RollbackToVersion(ctx, version); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	current, err := persistence.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Schema is at version %d\n", current)
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}

	records, err := persistence.MigrationHistory(context.Background(), historyLimit)
	if err != nil {
		return fmt.Errorf("loading history failed: %w", err)
	}
	if len(records) == 0 {
		cmd.Println("No migrations applied yet.")
		return nil
	}

	for _, r := range records {
		cmd.Printf("  v%d  %s  (applied %s)\n",
			r.Version, r.Description, r.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runValidate(cmd *cobra.Command, _ []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}

	report, err := persistence.ValidateIntegrity(context.Background())
	if err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}

	if report.Valid {
		cmd.Println("Schema integrity OK")
		return nil
	}

	cmd.Println("Schema integrity issues:")
	for _, issue := range report.Issues {
		if issue.Column != "" {
			cmd.Printf("  %s.%s: %s\n", issue.Table, issue.Column, issue.Problem)
		} else {
			cmd.Printf("  %s: %s\n", issue.Table, issue.Problem)
		}
	}
	cmd.Println()
	cmd.Println("Run 'glimmer migrate' to bring the schema up to date.")
	return nil
}
