package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection status",
	Long: `Shows the active backend, connection state, and last measured
latency. Use 'glimmer test' to run a fresh round-trip probe.`,
	RunE: runStatus,
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Probe the configured backend",
	Long:  `Runs one connection round-trip against the configured backend and reports latency.`,
	RunE:  runTest,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(testCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}

	status := persistence.ConnectionStatus()

	if statusJSON {
		data, err := json.MarshalIndent(map[string]any{
			"connected":      status.Connected,
			"last_connected": status.LastConnected,
			"last_error":     status.LastError,
			"latency_ms":     status.LatencyMs,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	state := "disconnected"
	if status.Connected {
		state = "connected"
	}
	cmd.Printf("State:   %s\n", state)
	if status.LastConnected != nil {
		cmd.Printf("Since:   %s\n", status.LastConnected.Format("2006-01-02 15:04:05"))
	}
	if status.Connected {
		cmd.Printf("Latency: %dms\n", status.LatencyMs)
	}
	if status.LastError != "" {
		cmd.Printf("Error:   %s\n", status.LastError)
	}
	return nil
}

func runTest(cmd *cobra.Command, _ []string) error {
	if persistence == nil {
		return errors.New("persistence service not configured")
	}

	result := persistence.TestConnection(context.Background(), nil)
	if !result.Success {
		return fmt.Errorf("connection test failed: %s", result.Error)
	}
	cmd.Printf("Connection OK (%dms)\n", result.LatencyMs)
	return nil
}
