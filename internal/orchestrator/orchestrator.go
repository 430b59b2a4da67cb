// Package orchestrator drives deployments against ECS: task definition
// registration, service rollout, rollback, cleanup, and status probes.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/eskildsen/stevedore/internal/config"
	"github.com/eskildsen/stevedore/internal/db"
	"github.com/eskildsen/stevedore/internal/registry"
	"github.com/eskildsen/stevedore/internal/secrets"
	"github.com/eskildsen/stevedore/internal/stack"
)

// ECSAPI is the client subset the orchestrator uses.
type ECSAPI interface {
	DescribeServices(ctx context.Context, params *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error)
	DescribeTaskDefinition(ctx context.Context, params *ecs.DescribeTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTaskDefinitionOutput, error)
	RegisterTaskDefinition(ctx context.Context, params *ecs.RegisterTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.RegisterTaskDefinitionOutput, error)
	UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error)
	ListTaskDefinitions(ctx context.Context, params *ecs.ListTaskDefinitionsInput, optFns ...func(*ecs.Options)) (*ecs.ListTaskDefinitionsOutput, error)
	DeregisterTaskDefinition(ctx context.Context, params *ecs.DeregisterTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.DeregisterTaskDefinitionOutput, error)
}

type ELBAPI interface {
	DescribeTargetHealth(ctx context.Context, params *elasticloadbalancingv2.DescribeTargetHealthInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTargetHealthOutput, error)
}

type RDSAPI interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

type ElastiCacheAPI interface {
	DescribeCacheClusters(ctx context.Context, params *elasticache.DescribeCacheClustersInput, optFns ...func(*elasticache.Options)) (*elasticache.DescribeCacheClustersOutput, error)
}

// Options collects the orchestrator's dependencies.
type Options struct {
	ECS         ECSAPI
	ELB         ELBAPI
	RDS         RDSAPI
	ElastiCache ElastiCacheAPI

	Registry *registry.Manager
	Stacks   *stack.Manager
	Store    *db.DB

	// LocalSecrets resolves "local" secret refs at registration time.
	// May be nil when the config uses Secrets Manager only.
	LocalSecrets secrets.Store

	Logger *slog.Logger

	// Service rollout polling. Zero values use the defaults.
	WaitInterval time.Duration
	WaitAttempts int
}

const (
	defaultWaitInterval = 10 * time.Second
	defaultWaitAttempts = 60
)

type Orchestrator struct {
	ecs          ECSAPI
	elb          ELBAPI
	rds          RDSAPI
	elasticache  ElastiCacheAPI
	registry     *registry.Manager
	stacks       *stack.Manager
	store        *db.DB
	localSecrets secrets.Store
	logger       *slog.Logger

	waitInterval time.Duration
	waitAttempts int
}

func New(opts Options) *Orchestrator {
	if opts.WaitInterval == 0 {
		opts.WaitInterval = defaultWaitInterval
	}
	if opts.WaitAttempts == 0 {
		opts.WaitAttempts = defaultWaitAttempts
	}
	return &Orchestrator{
		ecs:          opts.ECS,
		elb:          opts.ELB,
		rds:          opts.RDS,
		elasticache:  opts.ElastiCache,
		registry:     opts.Registry,
		stacks:       opts.Stacks,
		store:        opts.Store,
		localSecrets: opts.LocalSecrets,
		logger:       opts.Logger,
		waitInterval: opts.WaitInterval,
		waitAttempts: opts.WaitAttempts,
	}
}

// Store exposes the history database for status and API handlers.
func (o *Orchestrator) Store() *db.DB {
	return o.store
}

// Registry exposes the repository manager for CLI wiring.
func (o *Orchestrator) Registry() *registry.Manager {
	return o.registry
}

// Stacks exposes the stack manager for CLI wiring.
func (o *Orchestrator) Stacks() *stack.Manager {
	return o.stacks
}

// CreateDeploymentID returns a sortable timestamp-based deployment ID.
// Centiseconds keep IDs from operations issued in the same second distinct.
func CreateDeploymentID() string {
	now := time.Now()
	return now.Format("20060102150405") + fmt.Sprintf("%02d", now.Nanosecond()/1e7)
}

// ValidateDeploymentID reports whether id looks like a deployment ID.
// Both the 14-char and the centisecond 16-char forms are accepted.
func ValidateDeploymentID(id string) error {
	stamp := id
	if len(id) == 16 {
		if id[14] < '0' || id[14] > '9' || id[15] < '0' || id[15] > '9' {
			return fmt.Errorf("invalid deployment ID %q: expected YYYYMMDDHHMMSS", id)
		}
		stamp = id[:14]
	}
	if _, err := time.Parse("20060102150405", stamp); err != nil {
		return fmt.Errorf("invalid deployment ID %q: expected YYYYMMDDHHMMSS", id)
	}
	return nil
}

// resolveTarget validates a request's embedded target config. Defaults
// are reapplied so a payload that skipped config resolution cannot leave
// the pointer fields nil.
func resolveTarget(req Request) (*config.TargetConfig, error) {
	if req.Target == nil {
		return nil, fmt.Errorf("request has no target config")
	}
	req.Target.ApplyDefaults(req.AppName)
	if err := req.Target.Validate(); err != nil {
		return nil, fmt.Errorf("target config invalid: %w", err)
	}
	return req.Target, nil
}
