package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noxsuite/noxinstall/pkg/config"
	"github.com/noxsuite/noxinstall/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "noxinstall",
		Short: "NoxSuite - Self-healing installation engine",
		Long: `noxinstall installs the NoxSuite platform: it probes the host, resolves
external tool dependencies through the native package manager, lays out the
installation atomically with rollback on failure, and analyzes its own logs
to recover from previous failed attempts.

Modes:
  guided    interactive prompts (default)
  fast      sensible defaults, no prompts
  dry-run   simulate everything, change nothing
  safe      minimal module set, AI disabled
  recovery  adapt to the failures of the previous attempt`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newInstallCommand(version))
	rootCmd.AddCommand(newProbeCommand(version))
	rootCmd.AddCommand(newAuditCommand(version))
	rootCmd.AddCommand(newValidateCommand(version))
	rootCmd.AddCommand(newHistoryCommand(version))

	return rootCmd
}

// loadConfig reads the configuration honoring the global --config and
// --verbose flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if jsonOutput {
		cfg.Logging.Format = "json"
	}
	return cfg, nil
}

// newTelemetry builds the telemetry stack from the loaded configuration.
func newTelemetry(cfg *config.Config, version string) (*telemetry.Telemetry, error) {
	return telemetry.NewTelemetry(cfg.Telemetry(version))
}
