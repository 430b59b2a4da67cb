package config

import (
	"fmt"

	"github.com/eskildsen/stevedore/internal/constants"
	"github.com/eskildsen/stevedore/internal/helpers"
	"github.com/jinzhu/copier"
)

// EnvVar is a plain-text environment variable passed to the container.
type EnvVar struct {
	Name  string `json:"name" yaml:"name" toml:"name"`
	Value string `json:"value" yaml:"value" toml:"value"`
}

// SecretRef points at a secret resolved during task definition registration.
// Provider is "awssm" (AWS Secrets Manager, injected via valueFrom) or
// "local" (age-encrypted store, injected as a plain environment variable).
type SecretRef struct {
	Name     string `json:"name" yaml:"name" toml:"name"`
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty" toml:"provider,omitempty"`
	Key      string `json:"key" yaml:"key" toml:"key"`
}

const (
	SecretProviderAWS   = "awssm"
	SecretProviderLocal = "local"
)

// Container describes the single application container of the service.
type Container struct {
	Name    string   `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Port    int      `json:"port,omitempty" yaml:"port,omitempty" toml:"port,omitempty"`
	Command []string `json:"command,omitempty" yaml:"command,omitempty" toml:"command,omitempty"`
}

// HealthCheck configures the post-deploy verification poll.
type HealthCheck struct {
	URL      string `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty"`
	Interval string `json:"interval,omitempty" yaml:"interval,omitempty" toml:"interval,omitempty"`
	Attempts int    `json:"attempts,omitempty" yaml:"attempts,omitempty" toml:"attempts,omitempty"`
}

// TargetConfig holds everything needed to deploy to one environment.
type TargetConfig struct {
	Region       string `json:"region,omitempty" yaml:"region,omitempty" toml:"region,omitempty"`
	Cluster      string `json:"cluster,omitempty" yaml:"cluster,omitempty" toml:"cluster,omitempty"`
	Service      string `json:"service,omitempty" yaml:"service,omitempty" toml:"service,omitempty"`
	Repository   string `json:"repository,omitempty" yaml:"repository,omitempty" toml:"repository,omitempty"`
	Stack        string `json:"stack,omitempty" yaml:"stack,omitempty" toml:"stack,omitempty"`
	ImageTag     string `json:"imageTag,omitempty" yaml:"image_tag,omitempty" toml:"image_tag,omitempty"`
	DesiredCount *int   `json:"desiredCount,omitempty" yaml:"desired_count,omitempty" toml:"desired_count,omitempty"`

	Container   Container   `json:"container,omitempty" yaml:"container,omitempty" toml:"container,omitempty"`
	HealthCheck HealthCheck `json:"healthCheck,omitempty" yaml:"health_check,omitempty" toml:"health_check,omitempty"`

	LogGroup string `json:"logGroup,omitempty" yaml:"log_group,omitempty" toml:"log_group,omitempty"`
	Database string `json:"database,omitempty" yaml:"database,omitempty" toml:"database,omitempty"`
	Cache    string `json:"cache,omitempty" yaml:"cache,omitempty" toml:"cache,omitempty"`

	Server      string `json:"server,omitempty" yaml:"server,omitempty" toml:"server,omitempty"`
	APITokenEnv string `json:"apiTokenEnv,omitempty" yaml:"api_token_env,omitempty" toml:"api_token_env,omitempty"`

	Env     []EnvVar    `json:"env,omitempty" yaml:"env,omitempty" toml:"env,omitempty"`
	Secrets []SecretRef `json:"secrets,omitempty" yaml:"secrets,omitempty" toml:"secrets,omitempty"`

	// Production targets refuse to deploy without explicit confirmation.
	Production *bool `json:"production,omitempty" yaml:"production,omitempty" toml:"production,omitempty"`

	DeploymentsToKeep *int `json:"deploymentsToKeep,omitempty" yaml:"deployments_to_keep,omitempty" toml:"deployments_to_keep,omitempty"`
}

// DeploymentConfig is the stevedore config file: a base target plus a map
// of per-environment overrides.
type DeploymentConfig struct {
	Name string `json:"name" yaml:"name" toml:"name"`

	// Base fields apply to every target unless overridden.
	TargetConfig `mapstructure:",squash" json:",inline" yaml:",inline" toml:",inline"`

	Targets map[string]*TargetConfig `json:"targets,omitempty" yaml:"targets,omitempty" toml:"targets,omitempty"`
}

// TargetNames returns the configured environment names, empty when the
// config has no targets map (single-target configs deploy the base).
func (dc *DeploymentConfig) TargetNames() []string {
	names := make([]string, 0, len(dc.Targets))
	for name := range dc.Targets {
		names = append(names, name)
	}
	return names
}

// ResolveTarget merges a named target's overrides over the base config and
// applies defaults. An empty environment resolves the base alone.
func (dc *DeploymentConfig) ResolveTarget(environment string) (*TargetConfig, error) {
	var resolved TargetConfig
	if err := copier.CopyWithOption(&resolved, &dc.TargetConfig, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy base config: %w", err)
	}

	if environment != "" {
		override, ok := dc.Targets[environment]
		if !ok {
			return nil, fmt.Errorf("environment %q not found in config (available: %v)", environment, dc.TargetNames())
		}
		resolved.applyOverride(override)
	}

	resolved.ApplyDefaults(dc.Name)
	return &resolved, nil
}

func (tc *TargetConfig) applyOverride(override *TargetConfig) {
	if override == nil {
		return
	}
	if override.Region != "" {
		tc.Region = override.Region
	}
	if override.Cluster != "" {
		tc.Cluster = override.Cluster
	}
	if override.Service != "" {
		tc.Service = override.Service
	}
	if override.Repository != "" {
		tc.Repository = override.Repository
	}
	if override.Stack != "" {
		tc.Stack = override.Stack
	}
	if override.ImageTag != "" {
		tc.ImageTag = override.ImageTag
	}
	if override.DesiredCount != nil {
		tc.DesiredCount = override.DesiredCount
	}
	if override.Container.Name != "" {
		tc.Container.Name = override.Container.Name
	}
	if override.Container.Port != 0 {
		tc.Container.Port = override.Container.Port
	}
	if override.Container.Command != nil {
		tc.Container.Command = override.Container.Command
	}
	if override.HealthCheck.URL != "" {
		tc.HealthCheck.URL = override.HealthCheck.URL
	}
	if override.HealthCheck.Interval != "" {
		tc.HealthCheck.Interval = override.HealthCheck.Interval
	}
	if override.HealthCheck.Attempts != 0 {
		tc.HealthCheck.Attempts = override.HealthCheck.Attempts
	}
	if override.LogGroup != "" {
		tc.LogGroup = override.LogGroup
	}
	if override.Database != "" {
		tc.Database = override.Database
	}
	if override.Cache != "" {
		tc.Cache = override.Cache
	}
	if override.Server != "" {
		tc.Server = override.Server
	}
	if override.APITokenEnv != "" {
		tc.APITokenEnv = override.APITokenEnv
	}
	if override.Env != nil {
		tc.Env = override.Env
	}
	if override.Secrets != nil {
		tc.Secrets = override.Secrets
	}
	if override.Production != nil {
		tc.Production = override.Production
	}
	if override.DeploymentsToKeep != nil {
		tc.DeploymentsToKeep = override.DeploymentsToKeep
	}
}

// ApplyDefaults fills in the zero-valued fields. Targets arriving from
// outside ResolveTarget (job payloads) must go through this before the
// orchestrator dereferences the pointer fields.
func (tc *TargetConfig) ApplyDefaults(appName string) {
	if tc.Region == "" {
		tc.Region = constants.DefaultRegion
	}
	if tc.Container.Name == "" {
		tc.Container.Name = constants.DefaultContainerName
	}
	if tc.Container.Port == 0 {
		tc.Container.Port = constants.DefaultContainerPort
	}
	if tc.DesiredCount == nil {
		count := constants.DefaultDesiredCount
		tc.DesiredCount = &count
	}
	if tc.DeploymentsToKeep == nil {
		keep := constants.DefaultDeploymentsToKeep
		tc.DeploymentsToKeep = &keep
	}
	if tc.HealthCheck.Attempts == 0 {
		tc.HealthCheck.Attempts = constants.DefaultHealthAttempts
	}
	if tc.Repository == "" {
		tc.Repository = helpers.SanitizeName(appName)
	}
}

// IsProduction reports whether the target requires deploy confirmation.
func (tc *TargetConfig) IsProduction() bool {
	return tc.Production != nil && *tc.Production
}
