package cli

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/taskdeck/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Show the current settings, or change them with flags.

Examples:
  taskdeck config
  taskdeck config --server https://tasks.example.com
  taskdeck config --timeout 10s --confirm-delete=false`,
	RunE: runConfig,
}

var (
	configServer        string
	configTimeout       time.Duration
	configConfirmDelete bool
)

func init() {
	configCmd.Flags().StringVar(&configServer, "server", "", "Sync server URL")
	configCmd.Flags().DurationVar(&configTimeout, "timeout", 0, "HTTP request timeout")
	configCmd.Flags().BoolVar(&configConfirmDelete, "confirm-delete", true, "Ask before deleting")
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg := currentConfig()
	flags := cmd.Flags()
	changed := false

	if flags.Changed("server") {
		u, err := url.Parse(configServer)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid server URL %q", configServer)
		}
		cfg.ServerURL = configServer
		changed = true
	}
	if flags.Changed("timeout") {
		if configTimeout <= 0 {
			return fmt.Errorf("timeout must be positive")
		}
		cfg.RequestTimeout = configTimeout
		changed = true
	}
	if flags.Changed("confirm-delete") {
		cfg.ConfirmDelete = configConfirmDelete
		changed = true
	}

	if changed {
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Println("✓ Settings saved")
	}

	path, _ := config.Path()
	fmt.Printf("Config file:     %s\n", path)
	fmt.Printf("Server:          %s\n", cfg.ServerURL)
	fmt.Printf("Request timeout: %s\n", cfg.RequestTimeout)
	fmt.Printf("Confirm delete:  %t\n", cfg.ConfirmDelete)
	fmt.Printf("Log level:       %s\n", cfg.LogLevel)
	fmt.Printf("Log file:        %s\n", cfg.LogFile)
	return nil
}
