// Package apitypes defines the request and response shapes shared by
// the daemon API and its clients.
package apitypes

import (
	"time"

	"github.com/eskildsen/stevedore/internal/orchestrator"
	"github.com/eskildsen/stevedore/internal/secrets"
)

// HealthResponse is served unauthenticated on GET /health.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment,omitempty"`
	Version     string    `json:"version"`
}

type VersionResponse struct {
	Version string `json:"version"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// DeployRequest asks the daemon to deploy an environment. The daemon
// resolves the environment against its own config file.
type DeployRequest struct {
	Environment string `json:"environment"`
	// ImageTag deploys an already-pushed tag. Empty uses the deployment ID.
	ImageTag string `json:"imageTag,omitempty"`
}

type DeployResponse struct {
	DeploymentID string `json:"deploymentId"`
	JobID        string `json:"jobId"`
}

// RollbackRequest optionally pins the deployment to roll back to.
type RollbackRequest struct {
	TargetDeploymentID string `json:"targetDeploymentId,omitempty"`
}

type RollbackResponse struct {
	DeploymentID string `json:"deploymentId"`
	JobID        string `json:"jobId"`
}

type CleanupResponse struct {
	DeploymentID string `json:"deploymentId"`
	JobID        string `json:"jobId"`
}

// StatusResponse mirrors the orchestrator's aggregated report.
type StatusResponse = orchestrator.StatusReport

// DeploymentSummary is one history entry on the deployments listing.
type DeploymentSummary struct {
	ID             string    `json:"id"`
	Environment    string    `json:"environment"`
	AppName        string    `json:"appName"`
	ImageRef       string    `json:"imageRef"`
	RolledBackFrom *string   `json:"rolledBackFrom,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type DeploymentsResponse struct {
	Deployments []DeploymentSummary `json:"deployments"`
}

type SetSecretRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type SecretsListResponse struct {
	Secrets []secrets.Info `json:"secrets"`
}
