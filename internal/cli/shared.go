package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/eskildsen/stevedore/internal/apiclient"
	"github.com/eskildsen/stevedore/internal/awsutil"
	"github.com/eskildsen/stevedore/internal/config"
	"github.com/eskildsen/stevedore/internal/constants"
	"github.com/eskildsen/stevedore/internal/helpers"
	"github.com/eskildsen/stevedore/internal/logging"
	"github.com/eskildsen/stevedore/internal/registry"
	"github.com/eskildsen/stevedore/internal/stack"
	"github.com/eskildsen/stevedore/internal/ui"
)

// loadTarget loads the config file and resolves one environment.
func loadTarget(configPath, environment string) (*config.DeploymentConfig, *config.TargetConfig, error) {
	path, err := config.FindConfigFile(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg, _, err := config.LoadDeploymentConfig(path)
	if err != nil {
		return nil, nil, err
	}
	target, err := cfg.ResolveTarget(environment)
	if err != nil {
		return nil, nil, err
	}
	if err := target.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, target, nil
}

// clientForTarget builds an API client for the target's server.
func clientForTarget(target *config.TargetConfig) (*apiclient.APIClient, error) {
	serverURL := target.Server
	if serverURL == "" {
		serverURL = constants.DefaultAPIServerURL
	}
	normalized, err := helpers.NormalizeServerURL(serverURL)
	if err != nil {
		return nil, err
	}
	return apiclient.New(normalized), nil
}

// awsClientsForTarget builds AWS clients for the target's region,
// honoring the endpoint override for local test stacks.
func awsClientsForTarget(ctx context.Context, target *config.TargetConfig) (*awsutil.Clients, error) {
	return awsutil.New(ctx, target.Region, os.Getenv(constants.EnvVarAWSEndpoint))
}

func registryManager(clients *awsutil.Clients) *registry.Manager {
	return registry.NewManager(clients.ECR, logging.NewLogger(slog.LevelWarn, nil))
}

func stackManager(clients *awsutil.Clients) *stack.Manager {
	return stack.NewManager(clients.CloudFormation, logging.NewLogger(slog.LevelWarn, nil))
}

// confirmProduction gates destructive operations on production targets.
// Returns true when the operation may proceed.
func confirmProduction(target *config.TargetConfig, environment, action string, yes bool) bool {
	if !target.IsProduction() || yes {
		return true
	}
	ui.Warn("%s is a production environment.", environment)
	fmt.Printf("Type the environment name to confirm %s: ", action)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	if strings.TrimSpace(answer) != environment {
		ui.Error("Confirmation did not match, aborting.")
		return false
	}
	return true
}
