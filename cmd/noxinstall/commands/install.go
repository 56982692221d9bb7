package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/noxsuite/noxinstall/pkg/engine"
	"github.com/noxsuite/noxinstall/pkg/installer"
)

func newInstallCommand(version string) *cobra.Command {
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the NoxSuite platform",
		Long: `Install runs the full installation pipeline: pre-checks, dependency
resolution, directory scaffold, module installation, configuration
generation, service startup, and validation. A failure rolls back every
completed step in reverse order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := engine.ParseMode(modeFlag)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tel, err := newTelemetry(cfg, version)
			if err != nil {
				return err
			}
			defer func() { _ = tel.Shutdown(context.Background()) }()

			if tel.Config.Metrics.Enabled {
				if err := tel.StartMetricsServer(); err != nil {
					return err
				}
			}

			inst, err := installer.New(cmd.Context(), installer.Options{
				Config:    cfg,
				Telemetry: tel,
			})
			if err != nil {
				return err
			}
			defer func() { _ = inst.Close() }()

			return inst.Run(cmd.Context(), mode)
		},
	}

	cmd.Flags().StringVarP(&modeFlag, "mode", "m", string(engine.ModeGuided),
		"installation mode (guided, fast, dry-run, safe, recovery)")
	return cmd
}
