package cli

import (
	"fmt"

	"github.com/eskildsen/stevedore/internal/helpers"
	"github.com/eskildsen/stevedore/internal/ui"
	"github.com/spf13/cobra"
)

func DeploymentsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deployments <environment>",
		Short: "List deployment history for an environment",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			environment := args[0]

			_, target, err := loadTarget(*configPath, environment)
			if err != nil {
				ui.Error("%v", err)
				return
			}
			client, err := clientForTarget(target)
			if err != nil {
				ui.Error("%v", err)
				return
			}

			resp, err := client.Deployments(cmd.Context(), environment)
			if err != nil {
				ui.Error("Deployments request failed: %v", err)
				return
			}
			if len(resp.Deployments) == 0 {
				ui.Info("No deployments recorded for %s", environment)
				return
			}

			lines := make([]string, 0, len(resp.Deployments))
			for _, d := range resp.Deployments {
				line := fmt.Sprintf("%s  %s  %s", d.ID, d.ImageRef, helpers.FormatRelativeTime(d.CreatedAt))
				if d.RolledBackFrom != nil {
					line += fmt.Sprintf("  (rollback of %s)", *d.RolledBackFrom)
				}
				lines = append(lines, line)
			}
			ui.Section(fmt.Sprintf("Deployments for %s", environment), lines)
		},
	}
	return cmd
}
