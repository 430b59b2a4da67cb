package cli

import (
	"github.com/eskildsen/stevedore/internal/ui"
	"github.com/spf13/cobra"
)

func CleanupCmd(configPath *string) *cobra.Command {
	var yesFlag bool

	cmd := &cobra.Command{
		Use:   "cleanup <environment>",
		Short: "Prune old task definitions, images, and history",
		Long: `Prune inactive task definition revisions, old images in the
repository, deployment history beyond the configured retention, and
finished jobs older than a week. The active deployment is never touched.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			environment := args[0]

			_, target, err := loadTarget(*configPath, environment)
			if err != nil {
				ui.Error("%v", err)
				return
			}
			if !confirmProduction(target, environment, "cleanup", yesFlag) {
				return
			}
			client, err := clientForTarget(target)
			if err != nil {
				ui.Error("%v", err)
				return
			}

			resp, err := client.Cleanup(cmd.Context(), environment)
			if err != nil {
				ui.Error("Cleanup request failed: %v", err)
				return
			}
			ui.Success("Cleanup %s accepted (job %s)", resp.DeploymentID, resp.JobID)
		},
	}

	cmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Skip the production confirmation prompt")

	return cmd
}
