package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/eskildsen/stevedore/internal/config"
	"github.com/eskildsen/stevedore/internal/db"
	"github.com/eskildsen/stevedore/internal/stack"
)

// App status values derived from the ECS service state.
const (
	AppStatusRunning   = "running"
	AppStatusDeploying = "deploying"
	AppStatusDegraded  = "degraded"
	AppStatusStopped   = "stopped"
	AppStatusUnknown   = "unknown"
)

// ServiceStatus summarizes the ECS service.
type ServiceStatus struct {
	Desired        int32  `json:"desired"`
	Running        int32  `json:"running"`
	Pending        int32  `json:"pending"`
	RolloutState   string `json:"rolloutState,omitempty"`
	TaskDefinition string `json:"taskDefinition,omitempty"`
}

// ResourceStatus summarizes a managed resource (database, cache).
type ResourceStatus struct {
	Identifier string `json:"identifier,omitempty"`
	Status     string `json:"status"`
	Endpoint   string `json:"endpoint,omitempty"`
}

// QueueStatus summarizes the local job queue.
type QueueStatus struct {
	Pending int `json:"pending"`
	Running int `json:"running"`
	Failed  int `json:"failed"`
}

// TargetHealth counts load balancer targets by health.
type TargetHealth struct {
	Healthy int `json:"healthy"`
	Total   int `json:"total"`
}

// StatusReport aggregates everything the status surfaces show. Probes
// that fail report "unknown" rather than failing the whole report.
type StatusReport struct {
	Environment    string         `json:"environment"`
	AppStatus      string         `json:"appStatus"`
	Service        ServiceStatus  `json:"service"`
	Database       ResourceStatus `json:"database"`
	Cache          ResourceStatus `json:"cache"`
	Queue          QueueStatus    `json:"queue"`
	Targets        TargetHealth   `json:"targets"`
	LastDeployment *db.Deployment `json:"lastDeployment,omitempty"`
}

// Status probes the target's resources and assembles a report. Probe
// errors degrade the affected section instead of aborting.
func (o *Orchestrator) Status(ctx context.Context, environment string, target *config.TargetConfig) (StatusReport, error) {
	report := StatusReport{
		Environment: environment,
		AppStatus:   AppStatusUnknown,
		Database:    ResourceStatus{Status: AppStatusUnknown},
		Cache:       ResourceStatus{Status: AppStatusUnknown},
	}

	svc, err := o.describeService(ctx, target.Cluster, target.Service)
	if err != nil {
		o.logger.Warn("Service probe failed", "service", target.Service, "error", err)
	} else {
		report.Service = serviceStatus(svc)
		report.AppStatus = classifyService(svc)
	}

	report.Database = o.databaseStatus(ctx, target.Database)
	report.Cache = o.cacheStatus(ctx, target.Cache)
	report.Targets = o.targetHealth(ctx, target.Stack)
	report.Queue = o.queueStatus()

	if last, err := o.store.LatestDeployment(environment); err == nil {
		report.LastDeployment = &last
	} else if !errors.Is(err, db.ErrNotFound) {
		o.logger.Warn("History probe failed", "error", err)
	}

	return report, nil
}

func serviceStatus(svc *ecstypes.Service) ServiceStatus {
	status := ServiceStatus{
		Desired:        svc.DesiredCount,
		Running:        svc.RunningCount,
		Pending:        svc.PendingCount,
		TaskDefinition: aws.ToString(svc.TaskDefinition),
	}
	if primary := primaryDeployment(svc); primary != nil {
		status.RolloutState = string(primary.RolloutState)
	}
	return status
}

func classifyService(svc *ecstypes.Service) string {
	primary := primaryDeployment(svc)
	switch {
	case svc.DesiredCount == 0:
		return AppStatusStopped
	case primary != nil && primary.RolloutState == ecstypes.DeploymentRolloutStateInProgress,
		len(svc.Deployments) > 1:
		return AppStatusDeploying
	case primary != nil && primary.RolloutState == ecstypes.DeploymentRolloutStateFailed:
		return AppStatusDegraded
	case svc.RunningCount >= svc.DesiredCount:
		return AppStatusRunning
	case svc.RunningCount > 0:
		return AppStatusDegraded
	default:
		return AppStatusStopped
	}
}

func (o *Orchestrator) databaseStatus(ctx context.Context, identifier string) ResourceStatus {
	if identifier == "" {
		return ResourceStatus{Status: AppStatusUnknown}
	}
	status := ResourceStatus{Identifier: identifier, Status: AppStatusUnknown}
	out, err := o.rds.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: aws.String(identifier),
	})
	if err != nil || len(out.DBInstances) == 0 {
		o.logger.Warn("Database probe failed", "identifier", identifier, "error", err)
		return status
	}
	instance := out.DBInstances[0]
	status.Status = aws.ToString(instance.DBInstanceStatus)
	if instance.Endpoint != nil {
		status.Endpoint = fmt.Sprintf("%s:%d", aws.ToString(instance.Endpoint.Address), aws.ToInt32(instance.Endpoint.Port))
	}
	return status
}

func (o *Orchestrator) cacheStatus(ctx context.Context, clusterID string) ResourceStatus {
	if clusterID == "" {
		return ResourceStatus{Status: AppStatusUnknown}
	}
	status := ResourceStatus{Identifier: clusterID, Status: AppStatusUnknown}
	out, err := o.elasticache.DescribeCacheClusters(ctx, &elasticache.DescribeCacheClustersInput{
		CacheClusterId:    aws.String(clusterID),
		ShowCacheNodeInfo: aws.Bool(true),
	})
	if err != nil || len(out.CacheClusters) == 0 {
		o.logger.Warn("Cache probe failed", "cluster", clusterID, "error", err)
		return status
	}
	cluster := out.CacheClusters[0]
	status.Status = aws.ToString(cluster.CacheClusterStatus)
	if len(cluster.CacheNodes) > 0 && cluster.CacheNodes[0].Endpoint != nil {
		endpoint := cluster.CacheNodes[0].Endpoint
		status.Endpoint = fmt.Sprintf("%s:%d", aws.ToString(endpoint.Address), aws.ToInt32(endpoint.Port))
	}
	return status
}

// targetHealth resolves the target group from the stack outputs and
// counts healthy targets. Missing stack or output yields zero counts.
func (o *Orchestrator) targetHealth(ctx context.Context, stackName string) TargetHealth {
	if stackName == "" {
		return TargetHealth{}
	}
	info, err := o.stacks.Describe(ctx, stackName)
	if err != nil {
		o.logger.Warn("Stack probe failed", "stack", stackName, "error", err)
		return TargetHealth{}
	}
	targetGroupARN := info.Outputs[stack.OutputTargetGroupARN]
	if targetGroupARN == "" {
		return TargetHealth{}
	}
	out, err := o.elb.DescribeTargetHealth(ctx, &elasticloadbalancingv2.DescribeTargetHealthInput{
		TargetGroupArn: aws.String(targetGroupARN),
	})
	if err != nil {
		o.logger.Warn("Target health probe failed", "targetGroup", targetGroupARN, "error", err)
		return TargetHealth{}
	}
	health := TargetHealth{Total: len(out.TargetHealthDescriptions)}
	for _, desc := range out.TargetHealthDescriptions {
		if desc.TargetHealth != nil && desc.TargetHealth.State == elbtypes.TargetHealthStateEnumHealthy {
			health.Healthy++
		}
	}
	return health
}

func (o *Orchestrator) queueStatus() QueueStatus {
	status := QueueStatus{}
	if pending, err := o.store.CountJobs(db.JobStatePending); err == nil {
		status.Pending = pending
	}
	if running, err := o.store.CountJobs(db.JobStateRunning); err == nil {
		status.Running = running
	}
	if failed, err := o.store.CountJobs(db.JobStateFailed); err == nil {
		status.Failed = failed
	}
	return status
}
