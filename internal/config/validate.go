package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks a resolved target for the fields a deploy cannot proceed
// without. It is called after ResolveTarget, so defaults are in place.
func (tc *TargetConfig) Validate() error {
	var problems []string

	if tc.Cluster == "" {
		problems = append(problems, "cluster is required")
	}
	if tc.Service == "" {
		problems = append(problems, "service is required")
	}
	if tc.Repository == "" {
		problems = append(problems, "repository is required")
	}
	if tc.Container.Port < 1 || tc.Container.Port > 65535 {
		problems = append(problems, fmt.Sprintf("container port %d is out of range", tc.Container.Port))
	}
	if tc.DesiredCount != nil && *tc.DesiredCount < 0 {
		problems = append(problems, "desired_count cannot be negative")
	}
	if tc.HealthCheck.Interval != "" {
		if _, err := time.ParseDuration(tc.HealthCheck.Interval); err != nil {
			problems = append(problems, fmt.Sprintf("health_check.interval %q is not a duration", tc.HealthCheck.Interval))
		}
	}
	for _, env := range tc.Env {
		if env.Name == "" {
			problems = append(problems, "env entry with empty name")
		}
	}
	for _, secret := range tc.Secrets {
		if secret.Name == "" || secret.Key == "" {
			problems = append(problems, "secret entry needs both name and key")
			continue
		}
		switch secret.Provider {
		case "", SecretProviderAWS, SecretProviderLocal:
		default:
			problems = append(problems, fmt.Sprintf("secret %s has unknown provider %q", secret.Name, secret.Provider))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid target config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// HealthInterval returns the parsed health check interval with a default.
func (tc *TargetConfig) HealthInterval() time.Duration {
	if tc.HealthCheck.Interval == "" {
		return 15 * time.Second
	}
	d, err := time.ParseDuration(tc.HealthCheck.Interval)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// Validate checks the whole config file, including every target.
func (dc *DeploymentConfig) Validate() error {
	if dc.Name == "" {
		return fmt.Errorf("invalid config: name is required")
	}
	if len(dc.Targets) == 0 {
		resolved, err := dc.ResolveTarget("")
		if err != nil {
			return err
		}
		return resolved.Validate()
	}
	for name := range dc.Targets {
		resolved, err := dc.ResolveTarget(name)
		if err != nil {
			return err
		}
		if err := resolved.Validate(); err != nil {
			return fmt.Errorf("target %s: %w", name, err)
		}
	}
	return nil
}
