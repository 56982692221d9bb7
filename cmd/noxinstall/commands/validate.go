package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noxsuite/noxinstall/pkg/installer"
)

func newValidateCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <directory>",
		Short: "Validate an existing installation",
		Long:  `Validate checks an installation directory for the required structure and configuration.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			problems := installer.ValidateInstallation(args[0])
			if len(problems) == 0 {
				fmt.Printf("Installation at %s looks healthy.\n", args[0])
				return nil
			}
			for _, problem := range problems {
				fmt.Printf("  - %s\n", problem)
			}
			return fmt.Errorf("installation at %s has %d problem(s)", args[0], len(problems))
		},
	}
}
