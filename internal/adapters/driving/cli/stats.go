package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/glimmerhq/glimmer/internal/core/domain"
)

var (
	statsSince string
	statsModel string
	statsJSON  bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long: `Summarises stored artworks, trash, and operation log counts for
the connected backend.`,
	RunE: runStats,
}

var (
	logsPage  int
	logsSize  int
	logsPrune int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect the operation log",
	Long: `Lists recorded persistence operations, newest first. Use --prune
to remove entries older than the given number of days.`,
	RunE: runLogs,
}

func init() {
	statsCmd.Flags().StringVar(&statsSince, "since", "", "only count records created after this date (YYYY-MM-DD)")
	statsCmd.Flags().StringVar(&statsModel, "model", "", "only count artworks from this model")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	logsCmd.Flags().IntVar(&logsPage, "page", 1, "page number")
	logsCmd.Flags().IntVarP(&logsSize, "size", "n", domain.DefaultPageSize, "entries per page")
	logsCmd.Flags().IntVar(&logsPrune, "prune", 0, "remove entries older than this many days instead of listing")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(logsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}

	filter := domain.StatsFilter{Model: statsModel}
	if statsSince != "" {
		since, err := time.Parse("2006-01-02", statsSince)
		if err != nil {
			return fmt.Errorf("invalid --since date %q: %w", statsSince, err)
		}
		filter.Since = &since
	}

	stats, err := persistence.Statistics(context.Background(), filter)
	if err != nil {
		return fmt.Errorf("loading statistics failed: %w", err)
	}

	if statsJSON {
		out, err := json.MarshalIndent(map[string]any{
			"backend":        stats.Backend,
			"total_artworks": stats.TotalArtworks,
			"favorites":      stats.Favorites,
			"soft_deleted":   stats.SoftDeleted,
			"operation_logs": stats.OperationLogs,
			"failed_ops":     stats.FailedOps,
			"schema_version": stats.SchemaVersion,
		}, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Printf("Backend:         %s\n", stats.Backend)
	cmd.Printf("Schema version:  %d\n", stats.SchemaVersion)
	cmd.Printf("Artworks:        %d (%d favorite, %d in trash)\n",
		stats.TotalArtworks, stats.Favorites, stats.SoftDeleted)
	cmd.Printf("Operation logs:  %d (%d failed)\n", stats.OperationLogs, stats.FailedOps)
	if stats.OldestArtwork != nil && stats.NewestArtwork != nil {
		cmd.Printf("Artwork range:   %s to %s\n",
			stats.OldestArtwork.Format("2006-01-02"), stats.NewestArtwork.Format("2006-01-02"))
	}
	return nil
}

func runLogs(cmd *cobra.Command, _ []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}
	ctx := context.Background()

	if logsPrune > 0 {
		pruned, err := persistence.PruneOperationLogs(ctx, logsPrune)
		if err != nil {
			return fmt.Errorf("pruning operation logs failed: %w", err)
		}
		cmd.Printf("Pruned %d entries older than %d days\n", pruned, logsPrune)
		return nil
	}

	page, err := persistence.OperationLogs(ctx, domain.PageRequest{Page: logsPage, PageSize: logsSize})
	if err != nil {
		return fmt.Errorf("loading operation logs failed: %w", err)
	}
	if len(page.Data) == 0 {
		cmd.Println("No operation log entries.")
		return nil
	}

	for _, entry := range page.Data {
		line := fmt.Sprintf("%s  %-7s %s", entry.CreatedAt.Format(time.RFC3339), entry.Status, entry.Operation)
		if entry.Entity != "" {
			line += fmt.Sprintf(" %s", entry.Entity)
			if entry.RecordID != "" {
				line += fmt.Sprintf("/%s", entry.RecordID)
			}
		}
		if entry.Error != "" {
			line += fmt.Sprintf("  (%s)", entry.Error)
		}
		cmd.Println(line)
	}
	cmd.Printf("\nPage %d of %d (%d entries)\n", page.PageInfo.Page, page.PageInfo.TotalPages, page.PageInfo.Total)
	return nil
}
