package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/glimmerhq/glimmer/internal/core/domain"
)

var artworkCmd = &cobra.Command{
	Use:   "artwork",
	Short: "Manage stored artworks",
	Long: `List, inspect, and manage artworks in the gallery database.

Deleting an artwork moves it to the trash; 'restore' brings it back and
'purge' removes it permanently.`,
}

// Flags for artwork list.
var (
	listPage      int
	listPageSize  int
	listSortBy    string
	listAsc       bool
	listSearch    string
	listModel     string
	listTag       string
	listFavorites bool
	listDeleted   bool
	listJSON      bool
)

var artworkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List artworks",
	RunE:  runArtworkList,
}

var artworkShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one artwork",
	Args:  cobra.ExactArgs(1),
	RunE:  runArtworkShow,
}

var artworkFavoriteCmd = &cobra.Command{
	Use:   "favorite [id]",
	Short: "Toggle an artwork's favorite flag",
	Args:  cobra.ExactArgs(1),
	RunE:  runArtworkFavorite,
}

var deleteBy string

var artworkDeleteCmd = &cobra.Command{
	Use:   "delete [id]...",
	Short: "Move artworks to the trash",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runArtworkDelete,
}

var artworkRestoreCmd = &cobra.Command{
	Use:   "restore [id]",
	Short: "Restore an artwork from the trash",
	Args:  cobra.ExactArgs(1),
	RunE:  runArtworkRestore,
}

var purgeYes bool

var artworkPurgeCmd = &cobra.Command{
	Use:   "purge [id]",
	Short: "Remove an artwork permanently",
	Args:  cobra.ExactArgs(1),
	RunE:  runArtworkPurge,
}

func init() {
	artworkListCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	artworkListCmd.Flags().IntVarP(&listPageSize, "size", "n", domain.DefaultPageSize, "page size")
	artworkListCmd.Flags().StringVar(&listSortBy, "sort", "created_at", "sort column")
	artworkListCmd.Flags().BoolVar(&listAsc, "asc", false, "sort ascending")
	artworkListCmd.Flags().StringVar(&listSearch, "search", "", "search titles and prompts")
	artworkListCmd.Flags().StringVar(&listModel, "model", "", "filter by generation model")
	artworkListCmd.Flags().StringVar(&listTag, "tag", "", "filter by tag")
	artworkListCmd.Flags().BoolVar(&listFavorites, "favorites", false, "favorites only")
	artworkListCmd.Flags().BoolVar(&listDeleted, "deleted", false, "include trashed artworks")
	artworkListCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")

	artworkDeleteCmd.Flags().StringVar(&deleteBy, "by", "cli", "recorded deleter")
	artworkPurgeCmd.Flags().BoolVarP(&purgeYes, "yes", "y", false, "skip confirmation")

	artworkCmd.AddCommand(artworkListCmd)
	artworkCmd.AddCommand(artworkShowCmd)
	artworkCmd.AddCommand(artworkFavoriteCmd)
	artworkCmd.AddCommand(artworkDeleteCmd)
	artworkCmd.AddCommand(artworkRestoreCmd)
	artworkCmd.AddCommand(artworkPurgeCmd)
	rootCmd.AddCommand(artworkCmd)
}

func runArtworkList(cmd *cobra.Command, _ []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}

	req := domain.PageRequest{
		Page:           listPage,
		PageSize:       listPageSize,
		SortBy:         listSortBy,
		SortDir:        domain.SortDesc,
		Search:         listSearch,
		Model:          listModel,
		Tag:            listTag,
		FavoriteOnly:   listFavorites,
		IncludeDeleted: listDeleted,
	}
	if listAsc {
		req.SortDir = domain.SortAsc
	}

	page, err := persistence.ArtworkPage(context.Background(), req)
	if err != nil {
		return fmt.Errorf("listing artworks failed: %w", err)
	}

	if listJSON {
		data, err := json.MarshalIndent(page, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal page: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(page.Data) == 0 {
		cmd.Println("No artworks found.")
		return nil
	}

	for i := range page.Data {
		a := &page.Data[i]
		markers := ""
		if a.Favorite {
			markers += " *"
		}
		if a.IsDeleted {
			markers += " [trash]"
		}
		cmd.Printf("  %s  %s%s\n", a.ID, a.Title, markers)
		if a.Model != "" {
			cmd.Printf("      model: %s", a.Model)
			if len(a.Tags) > 0 {
				cmd.Printf("  tags: %s", strings.Join(a.Tags, ", "))
			}
			cmd.Println()
		}
	}
	cmd.Println()
	cmd.Printf("Page %d of %d (%d artworks)\n",
		page.PageInfo.Page, page.PageInfo.TotalPages, page.PageInfo.Total)
	return nil
}

func runArtworkShow(cmd *cobra.Command, args []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}

	artwork, err := persistence.Artwork(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("loading artwork failed: %w", err)
	}

	cmd.Printf("ID:        %s\n", artwork.ID)
	cmd.Printf("Title:     %s\n", artwork.Title)
	cmd.Printf("Model:     %s\n", artwork.Model)
	cmd.Printf("Prompt:    %s\n", artwork.Prompt)
	if artwork.NegativePrompt != "" {
		cmd.Printf("Negative:  %s\n", artwork.NegativePrompt)
	}
	cmd.Printf("Image:     %s\n", artwork.ImagePath)
	if artwork.Width > 0 || artwork.Height > 0 {
		cmd.Printf("Size:      %dx%d (seed %d)\n", artwork.Width, artwork.Height, artwork.Seed)
	}
	cmd.Printf("Favorite:  %t\n", artwork.Favorite)
	if len(artwork.Tags) > 0 {
		cmd.Printf("Tags:      %s\n", strings.Join(artwork.Tags, ", "))
	}
	cmd.Printf("Created:   %s\n", artwork.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("Updated:   %s\n", artwork.UpdatedAt.Format("2006-01-02 15:04:05"))
	if artwork.IsDeleted {
		cmd.Printf("Trashed:   by %s", artwork.DeletedBy)
		if artwork.DeletedAt != nil {
			cmd.Printf(" at %s", artwork.DeletedAt.Format("2006-01-02 15:04:05"))
		}
		cmd.Println()
	}
	return nil
}

func runArtworkFavorite(cmd *cobra.Command, args []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}
	ctx := context.Background()

	current, err := persistence.Artwork(ctx, args[0])
	if err != nil {
		return fmt.Errorf("loading artwork failed: %w", err)
	}

	favorite := !current.Favorite
	baseline := current.UpdatedAt
	updated, err := persistence.UpdateArtwork(ctx, args[0], domain.ArtworkPatch{
		Favorite:          &favorite,
		BaselineUpdatedAt: &baseline,
	})
	if err != nil {
		return fmt.Errorf("updating artwork failed: %w", err)
	}

	if updated.Favorite {
		cmd.Printf("Marked %s as favorite\n", updated.ID)
	} else {
		cmd.Printf("Removed favorite from %s\n", updated.ID)
	}
	return nil
}

func runArtworkDelete(cmd *cobra.Command, args []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}

	deleted, err := persistence.DeleteArtworks(context.Background(), args, deleteBy)
	if err != nil {
		return fmt.Errorf("deleting artworks failed: %w", err)
	}
	cmd.Printf("Moved %d artwork(s) to the trash\n", deleted)
	return nil
}

func runArtworkRestore(cmd *cobra.Command, args []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}

	if err := persistence.RestoreArtwork(context.Background(), args[0]); err != nil {
		return fmt.Errorf("restoring artwork failed: %w", err)
	}
	cmd.Printf("Restored %s\n", args[0])
	return nil
}

func runArtworkPurge(cmd *cobra.Command, args []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}
	if !purgeYes {
		return errors.New("purging is permanent; re-run with --yes to confirm")
	}

	if err := persistence.PurgeArtwork(context.Background(), args[0]); err != nil {
		return fmt.Errorf("purging artwork failed: %w", err)
	}
	cmd.Printf("Purged %s\n", args[0])
	return nil
}
