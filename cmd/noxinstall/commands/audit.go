package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noxsuite/noxinstall/pkg/audit"
)

func newAuditCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "audit [journal]",
		Short: "Analyze an installation journal",
		Long: `Audit parses an installation journal, classifies its failures against
the knowledge base, and prints recommendations. Without an argument the
default journal location is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tel, err := newTelemetry(cfg, version)
			if err != nil {
				return err
			}

			journalPath := cfg.JournalPath
			if len(args) == 1 {
				journalPath = args[0]
			}

			kb := audit.NewKnowledgeBase(tel.Logger)
			if cfg.KnowledgeBasePath != "" {
				if err := kb.LoadFile(cfg.KnowledgeBasePath); err != nil {
					tel.Logger.WithError(err).Warn("Knowledge base override not loaded")
				}
			}

			analysis, err := audit.NewAuditor(tel.Logger, kb).Analyze(journalPath)
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := json.MarshalIndent(analysis, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			fmt.Print(analysis.Summary())
			return nil
		},
	}
}
