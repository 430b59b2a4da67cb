package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/eskildsen/stevedore/internal/config"
)

// Command kinds. Each maps to one entry in the command table.
const (
	KindDeploy   = "deploy"
	KindRollback = "rollback"
	KindCleanup  = "cleanup"
)

// Request describes one unit of orchestration work. It is also the
// payload format for queued jobs.
type Request struct {
	Kind        string `json:"kind"`
	Environment string `json:"environment"`
	AppName     string `json:"appName"`

	// DeploymentID identifies a deploy run; assigned by the caller so
	// log streams can be attached before work starts.
	DeploymentID string `json:"deploymentId,omitempty"`

	// ImageTag overrides the tag to deploy. Empty means the tag equals
	// the deployment ID (build-and-push flow) for deploys.
	ImageTag string `json:"imageTag,omitempty"`

	// TargetDeploymentID selects the rollback target. Empty rolls back
	// to the deployment before the current one.
	TargetDeploymentID string `json:"targetDeploymentId,omitempty"`

	Target *config.TargetConfig `json:"target"`
}

type commandFunc func(ctx context.Context, o *Orchestrator, req Request, logger *slog.Logger) error

// commands is the dispatch table for orchestration kinds. New kinds
// register here instead of growing a switch.
var commands = map[string]commandFunc{
	KindDeploy: func(ctx context.Context, o *Orchestrator, req Request, logger *slog.Logger) error {
		_, err := o.Deploy(ctx, req, logger)
		return err
	},
	KindRollback: func(ctx context.Context, o *Orchestrator, req Request, logger *slog.Logger) error {
		_, err := o.Rollback(ctx, req, logger)
		return err
	},
	KindCleanup: func(ctx context.Context, o *Orchestrator, req Request, logger *slog.Logger) error {
		return o.Cleanup(ctx, req, logger)
	},
}

// Kinds returns the supported command kinds, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(commands))
	for kind := range commands {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Execute dispatches a request through the command table.
func (o *Orchestrator) Execute(ctx context.Context, req Request, logger *slog.Logger) error {
	cmd, ok := commands[req.Kind]
	if !ok {
		return fmt.Errorf("unknown command kind %q (supported: %v)", req.Kind, Kinds())
	}
	return cmd(ctx, o, req, logger)
}
