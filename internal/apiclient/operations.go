package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eskildsen/stevedore/internal/apitypes"
	"github.com/eskildsen/stevedore/internal/logging"
	"github.com/eskildsen/stevedore/internal/ui"
)

func (c *APIClient) Deploy(ctx context.Context, environment, imageTag string) (*apitypes.DeployResponse, error) {
	request := apitypes.DeployRequest{Environment: environment, ImageTag: imageTag}
	var response apitypes.DeployResponse
	if err := c.post(ctx, "deploy", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *APIClient) Rollback(ctx context.Context, environment, targetDeploymentID string) (*apitypes.RollbackResponse, error) {
	path := fmt.Sprintf("rollback/%s", environment)
	var request any
	if targetDeploymentID != "" {
		request = apitypes.RollbackRequest{TargetDeploymentID: targetDeploymentID}
	}
	var response apitypes.RollbackResponse
	if err := c.post(ctx, path, request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *APIClient) Cleanup(ctx context.Context, environment string) (*apitypes.CleanupResponse, error) {
	path := fmt.Sprintf("cleanup/%s", environment)
	var response apitypes.CleanupResponse
	if err := c.post(ctx, path, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *APIClient) Status(ctx context.Context, environment string) (*apitypes.StatusResponse, error) {
	if environment == "" {
		return nil, fmt.Errorf("environment is required")
	}
	path := fmt.Sprintf("status/%s", environment)
	var response apitypes.StatusResponse
	if err := c.get(ctx, path, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *APIClient) Deployments(ctx context.Context, environment string) (*apitypes.DeploymentsResponse, error) {
	path := fmt.Sprintf("deployments/%s", environment)
	var response apitypes.DeploymentsResponse
	if err := c.get(ctx, path, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *APIClient) Version(ctx context.Context) (*apitypes.VersionResponse, error) {
	var response apitypes.VersionResponse
	if err := c.get(ctx, "version", &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *APIClient) SecretsList(ctx context.Context) (*apitypes.SecretsListResponse, error) {
	var response apitypes.SecretsListResponse
	if err := c.get(ctx, "secrets", &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *APIClient) SetSecret(ctx context.Context, name, value string) error {
	request := apitypes.SetSecretRequest{Name: name, Value: value}
	return c.post(ctx, "secrets", request, nil)
}

func (c *APIClient) DeleteSecret(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("secret name is required")
	}
	return c.delete(ctx, fmt.Sprintf("secrets/%s", name))
}

// FollowDeployment streams a deployment's logs to the terminal until
// the deployment completes or fails. Returns an error when it failed.
func (c *APIClient) FollowDeployment(ctx context.Context, deploymentID string) error {
	failed := false
	handler := func(data string) (bool, error) {
		var entry logging.LogEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return false, fmt.Errorf("failed to parse log entry: %w", err)
		}
		DisplayLogEntry(entry)
		if entry.IsDeploymentFailed {
			failed = true
			return true, nil
		}
		return entry.IsDeploymentComplete, nil
	}
	path := fmt.Sprintf("deploy/%s/logs", deploymentID)
	if err := c.stream(ctx, path, handler); err != nil {
		return err
	}
	if failed {
		return fmt.Errorf("deployment %s failed", deploymentID)
	}
	return nil
}

// StreamLogs follows the daemon's general log stream until the context
// is canceled.
func (c *APIClient) StreamLogs(ctx context.Context) error {
	handler := func(data string) (bool, error) {
		var entry logging.LogEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return false, fmt.Errorf("failed to parse log entry: %w", err)
		}
		DisplayLogEntry(entry)
		return false, nil
	}
	return c.stream(ctx, "logs", handler)
}

// DisplayLogEntry renders a streamed log entry with level-appropriate
// styling.
func DisplayLogEntry(entry logging.LogEntry) {
	message := entry.Message
	if errValue, ok := entry.Fields["error"]; ok {
		message = fmt.Sprintf("%s (error: %v)", message, errValue)
	}

	switch strings.ToUpper(entry.Level) {
	case "ERROR":
		ui.Error("%s", message)
	case "WARN":
		ui.Warn("%s", message)
	case "DEBUG":
		ui.Debug("%s", message)
	default:
		if entry.IsDeploymentComplete {
			ui.Success("%s", message)
		} else {
			ui.Info("%s", message)
		}
	}
}
