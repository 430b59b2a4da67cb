package orchestrator

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/eskildsen/stevedore/internal/config"
)

// currentTaskDefinition fetches the task definition the service runs now.
func (o *Orchestrator) currentTaskDefinition(ctx context.Context, cluster, service string) (*ecstypes.Service, *ecstypes.TaskDefinition, error) {
	svc, err := o.describeService(ctx, cluster, service)
	if err != nil {
		return nil, nil, err
	}
	out, err := o.ecs.DescribeTaskDefinition(ctx, &ecs.DescribeTaskDefinitionInput{
		TaskDefinition: svc.TaskDefinition,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to describe task definition %s: %w", aws.ToString(svc.TaskDefinition), err)
	}
	return svc, out.TaskDefinition, nil
}

func (o *Orchestrator) describeService(ctx context.Context, cluster, service string) (*ecstypes.Service, error) {
	out, err := o.ecs.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(cluster),
		Services: []string{service},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe service %s: %w", service, err)
	}
	if len(out.Services) == 0 {
		return nil, fmt.Errorf("service %s not found in cluster %s", service, cluster)
	}
	return &out.Services[0], nil
}

// registerRevision registers a new task definition revision cloned from
// the current one, with the image, env, secrets, and log config patched
// in from the target config. Roles, sizing, and networking carry over.
func (o *Orchestrator) registerRevision(ctx context.Context, current *ecstypes.TaskDefinition, target *config.TargetConfig, imageRef string) (string, error) {
	env, taskSecrets, err := o.containerEnv(ctx, target)
	if err != nil {
		return "", err
	}

	containerDefs := make([]ecstypes.ContainerDefinition, len(current.ContainerDefinitions))
	copy(containerDefs, current.ContainerDefinitions)

	patched := false
	for i := range containerDefs {
		if aws.ToString(containerDefs[i].Name) != target.Container.Name {
			continue
		}
		def := &containerDefs[i]
		def.Image = aws.String(imageRef)
		def.Environment = env
		def.Secrets = taskSecrets
		if len(target.Container.Command) > 0 {
			def.Command = target.Container.Command
		}
		if target.Container.Port != 0 {
			def.PortMappings = []ecstypes.PortMapping{{
				ContainerPort: aws.Int32(int32(target.Container.Port)),
				Protocol:      ecstypes.TransportProtocolTcp,
			}}
		}
		if target.LogGroup != "" {
			def.LogConfiguration = &ecstypes.LogConfiguration{
				LogDriver: ecstypes.LogDriverAwslogs,
				Options: map[string]string{
					"awslogs-group":         target.LogGroup,
					"awslogs-region":        target.Region,
					"awslogs-stream-prefix": target.Container.Name,
				},
			}
		}
		patched = true
		break
	}
	if !patched {
		return "", fmt.Errorf("container %q not found in task definition %s", target.Container.Name, aws.ToString(current.Family))
	}

	input := &ecs.RegisterTaskDefinitionInput{
		Family:                  current.Family,
		ContainerDefinitions:    containerDefs,
		Cpu:                     current.Cpu,
		Memory:                  current.Memory,
		NetworkMode:             current.NetworkMode,
		RequiresCompatibilities: current.RequiresCompatibilities,
		ExecutionRoleArn:        current.ExecutionRoleArn,
		TaskRoleArn:             current.TaskRoleArn,
		Volumes:                 current.Volumes,
	}
	out, err := o.ecs.RegisterTaskDefinition(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to register task definition: %w", err)
	}
	return aws.ToString(out.TaskDefinition.TaskDefinitionArn), nil
}

// containerEnv builds the container environment from the target config.
// Plain env vars and local secrets become environment entries; Secrets
// Manager refs stay references ECS resolves at task start.
func (o *Orchestrator) containerEnv(ctx context.Context, target *config.TargetConfig) ([]ecstypes.KeyValuePair, []ecstypes.Secret, error) {
	env := make([]ecstypes.KeyValuePair, 0, len(target.Env))
	for _, v := range target.Env {
		env = append(env, ecstypes.KeyValuePair{
			Name:  aws.String(v.Name),
			Value: aws.String(v.Value),
		})
	}

	var taskSecrets []ecstypes.Secret
	for _, ref := range target.Secrets {
		switch ref.Provider {
		case config.SecretProviderLocal:
			if o.localSecrets == nil {
				return nil, nil, fmt.Errorf("secret %s uses the local provider but no local store is configured", ref.Name)
			}
			value, err := o.localSecrets.Get(ctx, ref.Key)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to resolve local secret %s: %w", ref.Key, err)
			}
			env = append(env, ecstypes.KeyValuePair{
				Name:  aws.String(ref.Name),
				Value: aws.String(value),
			})
		default:
			// Secrets Manager refs are resolved by ECS at task start.
			taskSecrets = append(taskSecrets, ecstypes.Secret{
				Name:      aws.String(ref.Name),
				ValueFrom: aws.String(ref.Key),
			})
		}
	}
	return env, taskSecrets, nil
}

// pruneTaskDefinitions deregisters old revisions of a family, keeping
// the newest keep plus whatever the service currently runs.
func (o *Orchestrator) pruneTaskDefinitions(ctx context.Context, family, activeARN string, keep int) (int, error) {
	var arns []string
	var nextToken *string
	for {
		out, err := o.ecs.ListTaskDefinitions(ctx, &ecs.ListTaskDefinitionsInput{
			FamilyPrefix: aws.String(family),
			Sort:         ecstypes.SortOrderDesc,
			Status:       ecstypes.TaskDefinitionStatusActive,
			NextToken:    nextToken,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to list task definitions for %s: %w", family, err)
		}
		arns = append(arns, out.TaskDefinitionArns...)
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	pruned := 0
	for i, arn := range arns {
		if i < keep || arn == activeARN {
			continue
		}
		if _, err := o.ecs.DeregisterTaskDefinition(ctx, &ecs.DeregisterTaskDefinitionInput{
			TaskDefinition: aws.String(arn),
		}); err != nil {
			return pruned, fmt.Errorf("failed to deregister %s: %w", arn, err)
		}
		pruned++
	}
	return pruned, nil
}
