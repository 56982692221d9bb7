package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noxsuite/noxinstall/pkg/stores"
)

func newHistoryCommand(version string) *cobra.Command {
	var limit int
	var showSteps string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past installation sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.DatabasePath})
			if err != nil {
				return err
			}
			if err := store.Init(cmd.Context()); err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			if showSteps != "" {
				return printSteps(cmd, store, showSteps)
			}

			sessions, err := store.ListSessions(cmd.Context(), limit, 0)
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := json.MarshalIndent(sessions, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			if len(sessions) == 0 {
				fmt.Println("No installation sessions recorded.")
				return nil
			}
			fmt.Printf("%-36s  %-9s  %-10s  %-20s  %s\n", "SESSION", "MODE", "STATUS", "STARTED", "DIRECTORY")
			for _, s := range sessions {
				fmt.Printf("%-36s  %-9s  %-10s  %-20s  %s\n",
					s.ID, s.Mode, s.Status, s.StartedAt.Format(time.RFC3339), s.InstallDirectory)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum sessions to list")
	cmd.Flags().StringVar(&showSteps, "steps", "", "show the steps of the given session ID")
	return cmd
}

func printSteps(cmd *cobra.Command, store stores.Store, sessionID string) error {
	steps, err := store.ListSteps(cmd.Context(), sessionID)
	if err != nil {
		return err
	}

	if jsonOutput {
		data, err := json.MarshalIndent(steps, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(steps) == 0 {
		fmt.Println("No steps recorded for session", sessionID)
		return nil
	}
	fmt.Printf("%-30s  %-10s  %10s  %s\n", "STEP", "STATUS", "DURATION", "ERROR")
	for _, s := range steps {
		errText := ""
		if s.ErrorText != nil {
			errText = *s.ErrorText
		}
		fmt.Printf("%-30s  %-10s  %8dms  %s\n", s.Name, s.Status, s.DurationMS, errText)
	}
	return nil
}
