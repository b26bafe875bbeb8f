// otgctl runs and administers the OTG automation controller.
//
// The controller drives phones attached to an iMouseXP hardware bridge,
// classifies what each phone shows with a vision model, and performs the
// configured engagement action. `otgctl serve` runs the long-lived
// controller; the other commands are one-shot administration helpers.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/otg-controller/internal/infrastructure/config"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// defaultConfigPath is read when it exists and no other path is given.
const defaultConfigPath = "configs/config.yaml"

// configEnv names the environment variable that overrides the config path.
const configEnv = "OTG_CONFIG"

// rootOptions holds flags shared by every command.
type rootOptions struct {
	ConfigPath string
}

func main() {
	// Cancel on Ctrl+C and SIGTERM so serve can shut down cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the otgctl command tree.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "otgctl",
		Short:         "OTG automation controller",
		Long:          "Run and administer the controller that drives phones through an iMouseXP bridge.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "",
		"path to config.yaml (default $"+configEnv+" or "+defaultConfigPath+")")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newDevicesCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// getConfigPath resolves the configuration file path.
//
// An explicit flag wins, then $OTG_CONFIG. The default path is used only
// when the file exists; otherwise "" selects built-in defaults plus
// environment overrides.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return defaultConfigPath
}

// loadConfig resolves the path and loads the configuration.
func loadConfig(opts *rootOptions) (*config.Config, string, error) {
	path := getConfigPath(opts.ConfigPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

// newVersionCommand prints build information.
func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "otgctl %s (commit %s, built %s)\n", version, commit, date)
			return err
		},
	}
}
