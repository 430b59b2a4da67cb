package cli

import (
	"fmt"

	"github.com/eskildsen/stevedore/internal/config"
	"github.com/eskildsen/stevedore/internal/pipeline"
	"github.com/eskildsen/stevedore/internal/secrets"
	"github.com/eskildsen/stevedore/internal/ui"
	"github.com/spf13/cobra"
)

func ValidateCmd(configPath *string) *cobra.Command {
	var templateFlag string
	var serverFlag string
	var offlineFlag bool

	cmd := &cobra.Command{
		Use:   "validate [check]",
		Short: "Validate config, targets, template, registry, and server",
		Long: `Run the pre-deploy checks: parse the config file, validate every
target, validate the stack template with CloudFormation, confirm the
repositories exist and secret refs resolve, and check that the daemon
is reachable. Name a single check to run just that one. With --offline
only the local checks run.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()

			validator := &pipeline.Validator{
				ConfigPath:   *configPath,
				TemplatePath: templateFlag,
				ServerURL:    serverFlag,
			}
			if len(args) == 1 {
				validator.Only = args[0]
			}

			if !offlineFlag {
				// AWS-backed checks need a region; take it from the
				// base target when one is configured.
				if target, err := resolveBaseTarget(*configPath); err == nil && target.Region != "" {
					clients, err := awsClientsForTarget(ctx, target)
					if err != nil {
						ui.Warn("Skipping AWS checks: %v", err)
					} else {
						validator.Stacks = stackManager(clients)
						validator.Registry = registryManager(clients)
						validator.Secrets = secrets.NewAWSStore(clients.Secrets)
					}
				}
			}

			results, allOK := validator.Run(ctx)
			for _, result := range results {
				if result.OK {
					ui.Success("%s: ok", result.Name)
				} else {
					ui.Error("%s: %s", result.Name, result.Detail)
				}
			}
			if !allOK {
				ui.Error("Validation failed")
				return
			}
			ui.Success("All checks passed")
		},
	}

	cmd.Flags().StringVar(&templateFlag, "template", "", "CloudFormation template to validate")
	cmd.Flags().StringVar(&serverFlag, "server", "", "Daemon URL to health-check")
	cmd.Flags().BoolVar(&offlineFlag, "offline", false, "Skip checks that call AWS")

	return cmd
}

func resolveBaseTarget(configPath string) (*config.TargetConfig, error) {
	path, err := config.FindConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg, _, err := config.LoadDeploymentConfig(path)
	if err != nil {
		return nil, err
	}
	target, err := cfg.ResolveTarget("")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base target: %w", err)
	}
	return target, nil
}
