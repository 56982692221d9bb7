package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noxsuite/noxinstall/pkg/platform"
)

func newProbeCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Probe host capabilities",
		Long:  `Probe detects what this host supports and prints the capability snapshot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tel, err := newTelemetry(cfg, version)
			if err != nil {
				return err
			}

			snap := platform.NewProber(tel.Logger).Detect(cmd.Context())

			if jsonOutput {
				data, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("OS:               %s/%s\n", snap.OSFamily, snap.Arch)
			fmt.Printf("Memory:           %.1f GB\n", snap.MemoryGB)
			fmt.Printf("CPU cores:        %d\n", snap.CPUCores)
			fmt.Printf("Package managers: %s\n", strings.Join(snap.PackageManagers, ", "))
			fmt.Printf("UTF-8 support:    %v\n", snap.UTF8Supported)
			fmt.Printf("Elevated:         %v\n", snap.Elevated)
			fmt.Printf("Home writable:    %v\n", snap.HomeWritable)

			names := make([]string, 0, len(snap.Tools))
			for name := range snap.Tools {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Println("Tools:")
			for _, name := range names {
				tool := snap.Tools[name]
				if tool.Available {
					fmt.Printf("  %-10s %s\n", name, tool.Version)
				} else {
					fmt.Printf("  %-10s not found\n", name)
				}
			}
			return nil
		},
	}
}
