package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/eskildsen/stevedore/internal/config"
	"github.com/eskildsen/stevedore/internal/db"
	"github.com/eskildsen/stevedore/internal/healthcheck"
)

// Deploy rolls a new image revision out to the target's ECS service and
// records it in history once the rollout stabilizes.
func (o *Orchestrator) Deploy(ctx context.Context, req Request, logger *slog.Logger) (db.Deployment, error) {
	target, err := resolveTarget(req)
	if err != nil {
		return db.Deployment{}, err
	}
	if req.DeploymentID == "" {
		req.DeploymentID = CreateDeploymentID()
	}

	tag := req.ImageTag
	if tag == "" {
		tag = req.DeploymentID
	}
	repositoryURI, err := o.registry.RepositoryURI(ctx, target.Repository)
	if err != nil {
		return db.Deployment{}, err
	}
	imageRef := fmt.Sprintf("%s:%s", repositoryURI, tag)

	logger.Info("Starting deployment", "image", imageRef, "cluster", target.Cluster, "service", target.Service)

	svc, current, err := o.currentTaskDefinition(ctx, target.Cluster, target.Service)
	if err != nil {
		return db.Deployment{}, err
	}

	newARN, err := o.registerRevision(ctx, current, target, imageRef)
	if err != nil {
		return db.Deployment{}, err
	}
	logger.Info("Registered task definition", "taskDefinition", newARN)

	if err := o.updateService(ctx, target, newARN); err != nil {
		return db.Deployment{}, err
	}

	if err := o.waitServiceStable(ctx, target, newARN, logger); err != nil {
		return db.Deployment{}, err
	}

	if err := o.verifyHealth(ctx, target, logger); err != nil {
		return db.Deployment{}, err
	}

	record := db.Deployment{
		ID:          req.DeploymentID,
		Environment: req.Environment,
		AppName:     req.AppName,
		ImageRef:    imageRef,
		TaskDefARN:  newARN,
		CreatedAt:   time.Now(),
	}
	if snapshot, err := json.Marshal(target); err == nil {
		record.ConfigSnapshot = snapshot
	}
	if err := o.store.SaveDeployment(record); err != nil {
		logger.Warn("Failed to record deployment history", "error", err)
	}

	keep := *target.DeploymentsToKeep
	if _, err := o.store.PruneDeployments(req.Environment, keep); err != nil {
		logger.Warn("Failed to prune deployment history", "error", err)
	}
	if pruned, err := o.pruneTaskDefinitions(ctx, aws.ToString(current.Family), newARN, keep); err != nil {
		logger.Warn("Failed to prune task definitions", "error", err)
	} else if pruned > 0 {
		logger.Debug("Pruned old task definitions", "count", pruned)
	}

	logger.Info("Deployment stabilized", "deploymentID", req.DeploymentID, "service", aws.ToString(svc.ServiceName))
	return record, nil
}

func (o *Orchestrator) updateService(ctx context.Context, target *config.TargetConfig, taskDefARN string) error {
	_, err := o.ecs.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:            aws.String(target.Cluster),
		Service:            aws.String(target.Service),
		TaskDefinition:     aws.String(taskDefARN),
		DesiredCount:       aws.Int32(int32(*target.DesiredCount)),
		ForceNewDeployment: true,
	})
	if err != nil {
		return fmt.Errorf("failed to update service %s: %w", target.Service, err)
	}
	return nil
}

// waitServiceStable polls the service at a fixed interval until the new
// revision is the only active deployment and counts match, or the
// rollout is reported failed, or the attempt budget runs out.
func (o *Orchestrator) waitServiceStable(ctx context.Context, target *config.TargetConfig, taskDefARN string, logger *slog.Logger) error {
	for attempt := 1; attempt <= o.waitAttempts; attempt++ {
		svc, err := o.describeService(ctx, target.Cluster, target.Service)
		if err != nil {
			return err
		}

		primary := primaryDeployment(svc)
		if primary != nil {
			if primary.RolloutState == ecstypes.DeploymentRolloutStateFailed {
				return fmt.Errorf("rollout of %s failed: %s", taskDefARN, aws.ToString(primary.RolloutStateReason))
			}
			stable := len(svc.Deployments) == 1 &&
				aws.ToString(primary.TaskDefinition) == taskDefARN &&
				svc.RunningCount == svc.DesiredCount &&
				(primary.RolloutState == "" || primary.RolloutState == ecstypes.DeploymentRolloutStateCompleted)
			if stable {
				return nil
			}
		}

		logger.Debug("Waiting for service to stabilize",
			"running", svc.RunningCount,
			"desired", svc.DesiredCount,
			"pending", svc.PendingCount,
			"deployments", len(svc.Deployments),
			"attempt", attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.waitInterval):
		}
	}
	return fmt.Errorf("service %s did not stabilize after %d attempts", target.Service, o.waitAttempts)
}

func primaryDeployment(svc *ecstypes.Service) *ecstypes.Deployment {
	for i := range svc.Deployments {
		if aws.ToString(svc.Deployments[i].Status) == "PRIMARY" {
			return &svc.Deployments[i]
		}
	}
	return nil
}

// verifyHealth runs the configured post-deploy health poll. Targets
// without a health check URL skip verification.
func (o *Orchestrator) verifyHealth(ctx context.Context, target *config.TargetConfig, logger *slog.Logger) error {
	if target.HealthCheck.URL == "" {
		return nil
	}
	logger.Info("Verifying application health", "url", target.HealthCheck.URL)
	poller := &healthcheck.Poller{
		URL:         target.HealthCheck.URL,
		Interval:    target.HealthInterval(),
		MaxAttempts: target.HealthCheck.Attempts,
	}
	result, err := poller.Run(ctx)
	if err != nil {
		return fmt.Errorf("health check failed after %d attempts (last status %d): %w", result.Attempts, result.LastStatus, err)
	}
	logger.Info("Application healthy", "attempts", result.Attempts, "elapsed", result.Elapsed.Round(time.Millisecond).String())
	return nil
}
