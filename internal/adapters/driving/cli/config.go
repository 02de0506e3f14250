package cli

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	configfile "github.com/glimmerhq/glimmer/internal/adapters/driven/config/file"
	"github.com/glimmerhq/glimmer/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage application configuration",
	Long: `View and edit the configuration file. Keys use dot notation, for
example 'networked.host' or 'retry.max_attempts'.

Sensitive keys are masked in listings. Environment variables with the
GLIMMER_ prefix override file values at runtime.`,
	RunE: runConfigList,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset [key]",
	Short: "Remove a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	if settingsStore == nil {
		return errors.New("settings store not configured")
	}

	values := settingsStore.All()
	if len(values) == 0 {
		cmd.Printf("No configuration set (%s)\n", settingsStore.Path())
		return nil
	}

	redacted := configfile.RedactedKeys()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cmd.Printf("Configuration (%s)\n", settingsStore.Path())
	for _, k := range keys {
		if redacted[k] {
			cmd.Printf("  %s = %s\n", k, domain.MaskSecret(fmt.Sprint(values[k])))
			continue
		}
		cmd.Printf("  %s = %v\n", k, values[k])
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if settingsStore == nil {
		return errors.New("settings store not configured")
	}

	value, ok := settingsStore.Get(args[0])
	if !ok {
		return fmt.Errorf("key %q is not set", args[0])
	}
	if configfile.RedactedKeys()[args[0]] {
		cmd.Println(domain.MaskSecret(fmt.Sprint(value)))
		return nil
	}
	cmd.Printf("%v\n", value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsStore == nil {
		return errors.New("settings store not configured")
	}

	key, raw := args[0], args[1]
	if err := settingsStore.Set(key, parseConfigValue(raw)); err != nil {
		return fmt.Errorf("saving configuration failed: %w", err)
	}
	if configfile.RedactedKeys()[key] {
		cmd.Printf("Set %s = %s\n", key, domain.MaskSecret(raw))
		return nil
	}
	cmd.Printf("Set %s = %s\n", key, raw)
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	if settingsStore == nil {
		return errors.New("settings store not configured")
	}

	if err := settingsStore.Delete(args[0]); err != nil {
		return fmt.Errorf("saving configuration failed: %w", err)
	}
	cmd.Printf("Removed %s\n", args[0])
	return nil
}

// parseConfigValue keeps booleans and integers typed in the TOML file so
// reads come back as the expected kind.
func parseConfigValue(raw string) any {
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}
