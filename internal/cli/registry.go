package cli

import (
	"github.com/eskildsen/stevedore/internal/constants"
	"github.com/eskildsen/stevedore/internal/ui"
	"github.com/spf13/cobra"
)

func RegistryCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage the container image repository",
	}
	cmd.AddCommand(registrySetupCmd(configPath))
	cmd.AddCommand(registryPruneCmd(configPath))
	return cmd
}

func registrySetupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup <environment>",
		Short: "Create the repository with scanning and a lifecycle policy",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()

			_, target, err := loadTarget(*configPath, args[0])
			if err != nil {
				ui.Error("%v", err)
				return
			}
			clients, err := awsClientsForTarget(ctx, target)
			if err != nil {
				ui.Error("%v", err)
				return
			}

			keep := constants.DefaultDeploymentsToKeep
			if target.DeploymentsToKeep != nil {
				keep = *target.DeploymentsToKeep
			}
			uri, err := registryManager(clients).EnsureRepository(ctx, target.Repository, keep)
			if err != nil {
				ui.Error("Failed to set up repository: %v", err)
				return
			}
			ui.Success("Repository ready: %s", uri)
		},
	}
}

func registryPruneCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prune <environment>",
		Short: "Delete old images beyond the retention count",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()

			_, target, err := loadTarget(*configPath, args[0])
			if err != nil {
				ui.Error("%v", err)
				return
			}
			clients, err := awsClientsForTarget(ctx, target)
			if err != nil {
				ui.Error("%v", err)
				return
			}

			keep := constants.DefaultDeploymentsToKeep
			if target.DeploymentsToKeep != nil {
				keep = *target.DeploymentsToKeep
			}
			deleted, err := registryManager(clients).PruneImages(ctx, target.Repository, keep)
			if err != nil {
				ui.Error("Failed to prune images: %v", err)
				return
			}
			ui.Success("Deleted %d images from %s", deleted, target.Repository)
		},
	}
}
