package cli

import (
	"context"
	"fmt"

	"github.com/eskildsen/stevedore/internal/config"
	"github.com/eskildsen/stevedore/internal/orchestrator"
	"github.com/eskildsen/stevedore/internal/registry"
	"github.com/eskildsen/stevedore/internal/ui"
	"github.com/spf13/cobra"
)

func DeployCmd(configPath *string) *cobra.Command {
	var imageTagFlag string
	var yesFlag bool
	var noLogsFlag bool
	var contextDirFlag string
	var dockerfileFlag string

	cmd := &cobra.Command{
		Use:   "deploy <environment>",
		Short: "Build, push, and deploy an environment",
		Long: `Deploy an environment. Without --image-tag the image is built and
pushed first, tagged with the generated deployment ID. With --image-tag
the build is skipped and the given tag is rolled out.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			environment := args[0]

			_, target, err := loadTarget(*configPath, environment)
			if err != nil {
				ui.Error("%v", err)
				return
			}

			if !confirmProduction(target, environment, "deploy", yesFlag) {
				return
			}

			imageTag := imageTagFlag
			if imageTag == "" {
				imageTag = orchestrator.CreateDeploymentID()
				if err := buildAndPush(ctx, target, imageTag, contextDirFlag, dockerfileFlag); err != nil {
					ui.Error("%v", err)
					return
				}
			}

			client, err := clientForTarget(target)
			if err != nil {
				ui.Error("%v", err)
				return
			}

			resp, err := client.Deploy(ctx, environment, imageTag)
			if err != nil {
				ui.Error("Deploy request failed: %v", err)
				return
			}
			ui.Info("Deployment %s accepted", resp.DeploymentID)

			if noLogsFlag {
				return
			}
			if err := client.FollowDeployment(ctx, resp.DeploymentID); err != nil {
				ui.Error("%v", err)
				return
			}
		},
	}

	cmd.Flags().StringVar(&imageTagFlag, "image-tag", "", "Deploy an already-pushed image tag instead of building")
	cmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Skip the production confirmation prompt")
	cmd.Flags().BoolVar(&noLogsFlag, "no-logs", false, "Don't stream deployment logs")
	cmd.Flags().StringVar(&contextDirFlag, "context", ".", "Docker build context directory")
	cmd.Flags().StringVar(&dockerfileFlag, "dockerfile", "Dockerfile", "Path to the Dockerfile, relative to the context")

	return cmd
}

// buildAndPush builds the image locally and pushes it to the target's
// repository under the given tag.
func buildAndPush(ctx context.Context, target *config.TargetConfig, tag, contextDir, dockerfile string) error {
	clients, err := awsClientsForTarget(ctx, target)
	if err != nil {
		return err
	}
	manager := registryManager(clients)

	repositoryURI, err := manager.RepositoryURI(ctx, target.Repository)
	if err != nil {
		return fmt.Errorf("repository %s not found, run 'stevedore registry setup' first: %w", target.Repository, err)
	}
	remoteRef := fmt.Sprintf("%s:%s", repositoryURI, tag)
	localRef := fmt.Sprintf("%s:%s", target.Repository, tag)

	dockerClient, err := registry.NewDockerClient()
	if err != nil {
		return err
	}
	defer dockerClient.Close()

	ui.Info("Building image %s", localRef)
	if err := registry.BuildImage(ctx, dockerClient, localRef, registry.BuildSpec{
		ContextDir: contextDir,
		Dockerfile: dockerfile,
	}); err != nil {
		return err
	}

	if err := registry.TagImage(ctx, dockerClient, localRef, remoteRef); err != nil {
		return err
	}

	authStr, endpoint, err := manager.AuthConfig(ctx)
	if err != nil {
		return err
	}
	ui.Info("Pushing %s to %s", remoteRef, endpoint)
	if err := registry.PushImage(ctx, dockerClient, remoteRef, authStr); err != nil {
		return err
	}
	ui.Success("Pushed %s", remoteRef)
	return nil
}
