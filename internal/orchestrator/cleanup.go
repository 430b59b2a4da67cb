package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

const jobRetention = 7 * 24 * time.Hour

// Cleanup prunes the artifacts a target accumulates between deploys:
// old task definition revisions, old registry images, deployment
// history beyond the retention count, and finished jobs.
func (o *Orchestrator) Cleanup(ctx context.Context, req Request, logger *slog.Logger) error {
	target, err := resolveTarget(req)
	if err != nil {
		return err
	}
	keep := *target.DeploymentsToKeep

	svc, current, err := o.currentTaskDefinition(ctx, target.Cluster, target.Service)
	if err != nil {
		return err
	}
	activeARN := aws.ToString(svc.TaskDefinition)

	pruned, err := o.pruneTaskDefinitions(ctx, aws.ToString(current.Family), activeARN, keep)
	if err != nil {
		return err
	}
	logger.Info("Pruned task definitions", "count", pruned, "family", aws.ToString(current.Family))

	images, err := o.registry.PruneImages(ctx, target.Repository, keep)
	if err != nil {
		return err
	}
	logger.Info("Pruned registry images", "count", images, "repository", target.Repository)

	history, err := o.store.PruneDeployments(req.Environment, keep)
	if err != nil {
		return err
	}
	jobs, err := o.store.PruneJobs(time.Now().Add(-jobRetention))
	if err != nil {
		return err
	}
	logger.Info("Pruned local records", "deployments", history, "jobs", jobs)
	return nil
}
