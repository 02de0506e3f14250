package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/glimmerhq/glimmer/internal/core/domain"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage stored credentials",
	Long: `Store, inspect, and remove credential sets. Values are encrypted
before they reach the database and decrypted only in memory.

Kinds:
  image_generation - image-generation API credentials
  object_storage   - object-storage credentials
  smtp             - outbound mail credentials

Examples:
  # Set fields directly
  glimmer secret set image_generation api_key=sk-xxx endpoint=https://api.example

  # Prompt for a sensitive field without echo
  glimmer secret set smtp password -

  # Inspect with values masked
  glimmer secret show smtp`,
}

var secretSetCmd = &cobra.Command{
	Use:   "set [kind] [key=value | key -]...",
	Short: "Store credential fields",
	Long: `Stores the given fields for a credential kind, merged over any
existing fields. A field given as 'key -' is prompted for without echo.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSecretSet,
}

var secretReveal bool

var secretShowCmd = &cobra.Command{
	Use:   "show [kind]",
	Short: "Show stored credential fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretShow,
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete [kind]",
	Short: "Remove a stored credential set",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretDelete,
}

func init() {
	secretShowCmd.Flags().BoolVar(&secretReveal, "reveal", false, "print values unmasked")
	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretShowCmd)
	secretCmd.AddCommand(secretDeleteCmd)
	rootCmd.AddCommand(secretCmd)
}

func secretKind(arg string) (domain.SecretKind, error) {
	kind := domain.SecretKind(arg)
	if !kind.IsValid() {
		return "", fmt.Errorf("unknown credential kind %q", arg)
	}
	return kind, nil
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}
	kind, err := secretKind(args[0])
	if err != nil {
		return err
	}
	ctx := context.Background()

	// Merge over the existing fields so one key can be updated alone.
	cfg, err := persistence.SecretConfig(ctx, kind)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("loading existing credentials failed: %w", err)
		}
		cfg = domain.SecretConfig{}
	}

	i := 1
	for i < len(args) {
		arg := args[i]
		if key, value, ok := strings.Cut(arg, "="); ok {
			cfg[key] = value
			i++
			continue
		}
		// 'key -' prompts without echo.
		if i+1 < len(args) && args[i+1] == "-" {
			cmd.Printf("%s: ", arg)
			cfg[arg] = readPassword()
			cmd.Println()
			i += 2
			continue
		}
		return fmt.Errorf("field %q must be key=value or 'key -'", arg)
	}

	if err := persistence.SaveSecretConfig(ctx, kind, cfg); err != nil {
		return fmt.Errorf("saving credentials failed: %w", err)
	}
	cmd.Printf("Stored %d field(s) for %s\n", len(cfg), kind)
	return nil
}

func runSecretShow(cmd *cobra.Command, args []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}
	kind, err := secretKind(args[0])
	if err != nil {
		return err
	}

	cfg, err := persistence.SecretConfig(context.Background(), kind)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			cmd.Printf("No credentials stored for %s\n", kind)
			return nil
		}
		return fmt.Errorf("loading credentials failed: %w", err)
	}

	if !secretReveal {
		cfg = cfg.Redacted()
	}
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Printf("  %s = %s\n", k, cfg[k])
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}
	kind, err := secretKind(args[0])
	if err != nil {
		return err
	}

	if err := persistence.DeleteSecretConfig(context.Background(), kind); err != nil {
		return fmt.Errorf("deleting credentials failed: %w", err)
	}
	cmd.Printf("Removed credentials for %s\n", kind)
	return nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}
