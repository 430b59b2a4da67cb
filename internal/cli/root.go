// Package cli implements the stevedore command tree.
package cli

import (
	"github.com/eskildsen/stevedore/internal/config"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	resolvedConfigPath := "."
	var configPathFlag string

	cmd := &cobra.Command{
		Use:   "stevedore",
		Short: "stevedore deploys containerized applications to ECS",
		Long: `stevedore builds, pushes, and deploys containerized applications to
ECS based on a YAML config, with CloudFormation-managed infrastructure,
deployment history, and rollback.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnvFiles() // load .env for all commands

			if configPathFlag != "" {
				resolvedConfigPath = configPathFlag
			}
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVarP(&configPathFlag, "config", "c", "", "Path to config file or directory (default: .)")

	cmd.AddCommand(
		DeployCmd(&resolvedConfigPath),
		RollbackCmd(&resolvedConfigPath),
		StatusCmd(&resolvedConfigPath),
		DeploymentsCmd(&resolvedConfigPath),
		LogsCmd(&resolvedConfigPath),
		MonitorCmd(&resolvedConfigPath),
		CleanupCmd(&resolvedConfigPath),
		ValidateCmd(&resolvedConfigPath),

		RegistryCmd(&resolvedConfigPath),
		StackCmd(&resolvedConfigPath),
		SecretsCmd(&resolvedConfigPath),

		ServerCmd(),
		VersionCmd(&resolvedConfigPath),
	)

	return cmd
}
