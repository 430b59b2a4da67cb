// Package stack manages the CloudFormation stack backing an environment
// (ALB, RDS, ElastiCache, ECS service scaffolding).
package stack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/eskildsen/stevedore/internal/awsutil"
)

// Well-known output keys the CloudFormation templates expose.
const (
	OutputLoadBalancerDNS = "LoadBalancerDNS"
	OutputTargetGroupARN  = "TargetGroupArn"
	OutputDatabaseAddress = "DatabaseAddress"
	OutputCacheAddress    = "CacheAddress"
)

// CloudFormationAPI is the client subset the manager uses.
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
	ValidateTemplate(ctx context.Context, params *cloudformation.ValidateTemplateInput, optFns ...func(*cloudformation.Options)) (*cloudformation.ValidateTemplateOutput, error)
}

// Info is the stack state relevant to deploys and status reporting.
type Info struct {
	Name    string
	Status  string
	Outputs map[string]string
}

type Manager struct {
	client CloudFormationAPI
	logger *slog.Logger
}

func NewManager(client CloudFormationAPI, logger *slog.Logger) *Manager {
	return &Manager{client: client, logger: logger}
}

// Describe returns the stack's current status and outputs.
func (m *Manager) Describe(ctx context.Context, name string) (Info, error) {
	out, err := m.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if err != nil {
		return Info{}, fmt.Errorf("failed to describe stack %s: %w", name, err)
	}
	if len(out.Stacks) == 0 {
		return Info{}, fmt.Errorf("stack %s not found", name)
	}
	stack := out.Stacks[0]
	return Info{
		Name:    name,
		Status:  string(stack.StackStatus),
		Outputs: outputsToMap(stack.Outputs),
	}, nil
}

// Up creates the stack, or updates it when it already exists. Returns
// false when CloudFormation reports there is nothing to change.
func (m *Manager) Up(ctx context.Context, name, templateBody string, parameters map[string]string) (bool, error) {
	params := toParameters(parameters)
	capabilities := []cfntypes.Capability{cfntypes.CapabilityCapabilityNamedIam}

	_, err := m.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(name)})
	if err != nil {
		if !awsutil.IsNotFound(err) {
			return false, fmt.Errorf("failed to describe stack %s: %w", name, err)
		}
		m.logger.Info("Creating stack", "stack", name)
		_, err = m.client.CreateStack(ctx, &cloudformation.CreateStackInput{
			StackName:    aws.String(name),
			TemplateBody: aws.String(templateBody),
			Parameters:   params,
			Capabilities: capabilities,
		})
		if err != nil {
			return false, fmt.Errorf("failed to create stack %s: %w", name, err)
		}
		return true, nil
	}

	m.logger.Info("Updating stack", "stack", name)
	_, err = m.client.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    aws.String(name),
		TemplateBody: aws.String(templateBody),
		Parameters:   params,
		Capabilities: capabilities,
	})
	if err != nil {
		if awsutil.IsNoUpdates(err) {
			m.logger.Info("Stack already up to date", "stack", name)
			return false, nil
		}
		return false, fmt.Errorf("failed to update stack %s: %w", name, err)
	}
	return true, nil
}

// Down deletes the stack. Deleting a missing stack is not an error.
func (m *Manager) Down(ctx context.Context, name string) error {
	_, err := m.client.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(name),
	})
	if err != nil && !awsutil.IsNotFound(err) {
		return fmt.Errorf("failed to delete stack %s: %w", name, err)
	}
	return nil
}

// Validate asks CloudFormation to validate a template body.
func (m *Manager) Validate(ctx context.Context, templateBody string) error {
	_, err := m.client.ValidateTemplate(ctx, &cloudformation.ValidateTemplateInput{
		TemplateBody: aws.String(templateBody),
	})
	if err != nil {
		return fmt.Errorf("template validation failed: %w", err)
	}
	return nil
}

// Wait polls the stack at a fixed interval until it reaches a terminal
// status or the attempt budget runs out.
func (m *Manager) Wait(ctx context.Context, name string, interval time.Duration, maxAttempts int) (Info, error) {
	var info Info
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		current, err := m.Describe(ctx, name)
		switch {
		case err == nil:
			info = current
			switch Classify(info.Status) {
			case StateSucceeded:
				return info, nil
			case StateFailed:
				return info, fmt.Errorf("stack %s reached failure state %s", name, info.Status)
			}
		case awsutil.IsNotFound(err):
			// Gone means the delete finished.
			return Info{Name: name, Status: string(cfntypes.StackStatusDeleteComplete)}, nil
		case awsutil.IsThrottled(err):
			// Rate limited; keep polling.
			m.logger.Debug("Describe throttled", "stack", name, "attempt", attempt)
		default:
			return info, err
		}

		m.logger.Debug("Waiting for stack", "stack", name, "status", info.Status, "attempt", attempt)
		select {
		case <-ctx.Done():
			return info, ctx.Err()
		case <-time.After(interval):
		}
	}
	return info, fmt.Errorf("stack %s did not stabilize after %d attempts (last status %s)", name, maxAttempts, info.Status)
}

// State buckets for stack statuses.
type State int

const (
	StateInProgress State = iota
	StateSucceeded
	StateFailed
)

// Classify maps a CloudFormation stack status onto a coarse outcome.
func Classify(status string) State {
	switch cfntypes.StackStatus(status) {
	case cfntypes.StackStatusCreateComplete,
		cfntypes.StackStatusUpdateComplete,
		cfntypes.StackStatusDeleteComplete:
		return StateSucceeded
	case cfntypes.StackStatusCreateFailed,
		cfntypes.StackStatusDeleteFailed,
		cfntypes.StackStatusUpdateFailed,
		cfntypes.StackStatusRollbackComplete,
		cfntypes.StackStatusRollbackFailed,
		cfntypes.StackStatusRollbackInProgress,
		cfntypes.StackStatusUpdateRollbackComplete,
		cfntypes.StackStatusUpdateRollbackFailed:
		return StateFailed
	default:
		return StateInProgress
	}
}

func outputsToMap(outputs []cfntypes.Output) map[string]string {
	m := make(map[string]string, len(outputs))
	for _, output := range outputs {
		m[aws.ToString(output.OutputKey)] = aws.ToString(output.OutputValue)
	}
	return m
}

func toParameters(parameters map[string]string) []cfntypes.Parameter {
	params := make([]cfntypes.Parameter, 0, len(parameters))
	for key, value := range parameters {
		params = append(params, cfntypes.Parameter{
			ParameterKey:   aws.String(key),
			ParameterValue: aws.String(value),
		})
	}
	return params
}
