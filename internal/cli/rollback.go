package cli

import (
	"github.com/eskildsen/stevedore/internal/ui"
	"github.com/spf13/cobra"
)

func RollbackCmd(configPath *string) *cobra.Command {
	var yesFlag bool
	var noLogsFlag bool

	cmd := &cobra.Command{
		Use:   "rollback <environment> [deployment-id]",
		Short: "Roll an environment back to a previous deployment",
		Long: `Roll back to the previous deployment, or to a specific deployment ID
from 'stevedore deployments'. The rollback is recorded as a new history
entry pointing at the deployment it reverted.`,
		Args: cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			environment := args[0]
			targetDeploymentID := ""
			if len(args) == 2 {
				targetDeploymentID = args[1]
			}

			_, target, err := loadTarget(*configPath, environment)
			if err != nil {
				ui.Error("%v", err)
				return
			}

			if !confirmProduction(target, environment, "rollback", yesFlag) {
				return
			}

			client, err := clientForTarget(target)
			if err != nil {
				ui.Error("%v", err)
				return
			}

			resp, err := client.Rollback(ctx, environment, targetDeploymentID)
			if err != nil {
				ui.Error("Rollback request failed: %v", err)
				return
			}
			ui.Info("Rollback %s accepted", resp.DeploymentID)

			if noLogsFlag {
				return
			}
			if err := client.FollowDeployment(ctx, resp.DeploymentID); err != nil {
				ui.Error("%v", err)
				return
			}
		},
	}

	cmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Skip the production confirmation prompt")
	cmd.Flags().BoolVar(&noLogsFlag, "no-logs", false, "Don't stream rollback logs")

	return cmd
}
