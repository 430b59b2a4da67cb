package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eskildsen/stevedore/internal/db"
	"github.com/eskildsen/stevedore/internal/helpers"
)

// Rollback points the service back at a previously recorded deployment's
// task definition. Without a target deployment ID it picks the most
// recent deployment before the current one.
func (o *Orchestrator) Rollback(ctx context.Context, req Request, logger *slog.Logger) (db.Deployment, error) {
	target, err := resolveTarget(req)
	if err != nil {
		return db.Deployment{}, err
	}
	if req.DeploymentID == "" {
		req.DeploymentID = CreateDeploymentID()
	}

	current, err := o.store.LatestDeployment(req.Environment)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return db.Deployment{}, fmt.Errorf("no deployment history for %s, nothing to roll back", req.Environment)
		}
		return db.Deployment{}, err
	}

	var previous db.Deployment
	if req.TargetDeploymentID != "" {
		previous, err = o.store.GetDeployment(req.TargetDeploymentID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return db.Deployment{}, fmt.Errorf("deployment %s not found in history", req.TargetDeploymentID)
			}
			return db.Deployment{}, err
		}
		if previous.Environment != req.Environment {
			return db.Deployment{}, fmt.Errorf("deployment %s belongs to %s, not %s", previous.ID, previous.Environment, req.Environment)
		}
		if previous.ID == current.ID {
			return db.Deployment{}, fmt.Errorf("deployment %s is already the current deployment", previous.ID)
		}
	} else {
		previous, err = o.previousDeployment(req.Environment, current)
		if err != nil {
			return db.Deployment{}, err
		}
	}

	logger.Info("Rolling back",
		"from", current.ID,
		"to", previous.ID,
		"revision", helpers.TaskDefRevision(previous.TaskDefARN))

	if err := o.updateService(ctx, target, previous.TaskDefARN); err != nil {
		return db.Deployment{}, err
	}
	if err := o.waitServiceStable(ctx, target, previous.TaskDefARN, logger); err != nil {
		return db.Deployment{}, err
	}
	if err := o.verifyHealth(ctx, target, logger); err != nil {
		return db.Deployment{}, err
	}

	record := db.Deployment{
		ID:             req.DeploymentID,
		Environment:    req.Environment,
		AppName:        req.AppName,
		ImageRef:       previous.ImageRef,
		TaskDefARN:     previous.TaskDefARN,
		ConfigSnapshot: previous.ConfigSnapshot,
		RolledBackFrom: &current.ID,
		CreatedAt:      time.Now(),
	}
	if err := o.store.SaveDeployment(record); err != nil {
		logger.Warn("Failed to record rollback in history", "error", err)
	}

	logger.Info("Rollback complete", "deploymentID", record.ID, "image", record.ImageRef)
	return record, nil
}

// previousDeployment finds the newest history entry older than current
// that is not itself a rollback to current's revision.
func (o *Orchestrator) previousDeployment(environment string, current db.Deployment) (db.Deployment, error) {
	deployments, err := o.store.ListDeployments(environment, 0)
	if err != nil {
		return db.Deployment{}, err
	}
	for _, d := range deployments {
		if d.ID >= current.ID {
			continue
		}
		if d.TaskDefARN == current.TaskDefARN {
			continue
		}
		return d, nil
	}
	return db.Deployment{}, fmt.Errorf("no older deployment to roll back to for %s", environment)
}
