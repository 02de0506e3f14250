// Package cli is the operator-facing command surface. Commands talk to
// the persistence facade through the driving port and never touch
// adapter code directly.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glimmerhq/glimmer/internal/core/ports/driven"
	"github.com/glimmerhq/glimmer/internal/core/ports/driving"
	"github.com/glimmerhq/glimmer/internal/logger"
)

// version is set by the build.
var version = "dev"

// Injected by the composition root before Execute.
var (
	persistence   driving.Persistence
	settingsStore driven.SettingsStore
)

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "glimmer",
	Short: "Glimmer gallery persistence tool",
	Long: `Manage the Glimmer gallery database: connection status, artworks,
schema migrations, credentials, and operational statistics.

The active backend (embedded SQLite file or networked PostgreSQL) is
selected by configuration; every command works identically on both.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
}

// SetServices injects the wired services. Called once by the
// composition root.
func SetServices(p driving.Persistence, s driven.SettingsStore) {
	persistence = p
	settingsStore = s
}

// SetVersion stamps the build version shown by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("glimmer version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
