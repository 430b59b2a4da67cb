// Package pipeline runs the pre-deploy validation checks: config file,
// per-target settings, stack template, registry, secret refs, and
// daemon reachability.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/eskildsen/stevedore/internal/apiclient"
	"github.com/eskildsen/stevedore/internal/config"
	"github.com/eskildsen/stevedore/internal/registry"
	"github.com/eskildsen/stevedore/internal/secrets"
	"github.com/eskildsen/stevedore/internal/stack"
)

// CheckResult is one validation outcome.
type CheckResult struct {
	Name   string
	OK     bool
	Detail string
}

// Check is a named validation step.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Validator assembles and runs the check list. Nil managers skip the
// checks that need them, so offline validation still works.
type Validator struct {
	ConfigPath   string
	TemplatePath string

	Stacks   *stack.Manager
	Registry *registry.Manager

	// Secrets resolves Secrets Manager refs to confirm they exist.
	Secrets secrets.Store

	// ServerURL enables the daemon reachability check.
	ServerURL string

	// Only restricts the run to the named check; the config check always
	// runs first since the others depend on it.
	Only string
}

// Run executes every applicable check and reports whether all passed.
func (v *Validator) Run(ctx context.Context) ([]CheckResult, bool) {
	checks := v.buildChecks()
	if v.Only != "" {
		filtered := make([]Check, 0, 2)
		found := false
		for _, check := range checks {
			if check.Name == v.Only || (check.Name == "config" && v.Only != "config") {
				filtered = append(filtered, check)
			}
			if check.Name == v.Only {
				found = true
			}
		}
		if !found {
			return []CheckResult{{Name: v.Only, OK: false, Detail: "unknown check"}}, false
		}
		checks = filtered
	}

	results := make([]CheckResult, 0, len(checks))
	allOK := true
	for _, check := range checks {
		result := CheckResult{Name: check.Name, OK: true}
		if err := check.Run(ctx); err != nil {
			result.OK = false
			result.Detail = err.Error()
			allOK = false
		}
		results = append(results, result)
	}
	return results, allOK
}

func (v *Validator) buildChecks() []Check {
	var cfg *config.DeploymentConfig

	checks := []Check{{
		Name: "config",
		Run: func(ctx context.Context) error {
			path, err := config.FindConfigFile(v.ConfigPath)
			if err != nil {
				return err
			}
			loaded, _, err := config.LoadDeploymentConfig(path)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}}

	checks = append(checks, Check{
		Name: "targets",
		Run: func(ctx context.Context) error {
			if cfg == nil {
				return fmt.Errorf("skipped: config did not load")
			}
			environments := cfg.TargetNames()
			sort.Strings(environments)
			if len(environments) == 0 {
				target, err := cfg.ResolveTarget("")
				if err != nil {
					return err
				}
				return target.Validate()
			}
			for _, environment := range environments {
				target, err := cfg.ResolveTarget(environment)
				if err != nil {
					return err
				}
				if err := target.Validate(); err != nil {
					return fmt.Errorf("%s: %w", environment, err)
				}
			}
			return nil
		},
	})

	if v.TemplatePath != "" && v.Stacks != nil {
		checks = append(checks, Check{
			Name: "stack-template",
			Run: func(ctx context.Context) error {
				body, err := os.ReadFile(v.TemplatePath)
				if err != nil {
					return fmt.Errorf("failed to read template: %w", err)
				}
				return v.Stacks.Validate(ctx, string(body))
			},
		})
	}

	if v.Registry != nil {
		checks = append(checks, Check{
			Name: "registry",
			Run: func(ctx context.Context) error {
				if cfg == nil {
					return fmt.Errorf("skipped: config did not load")
				}
				repositories := map[string]bool{}
				environments := cfg.TargetNames()
				if len(environments) == 0 {
					environments = []string{""}
				}
				for _, environment := range environments {
					target, err := cfg.ResolveTarget(environment)
					if err != nil {
						return err
					}
					repositories[target.Repository] = true
				}
				for repository := range repositories {
					if _, err := v.Registry.RepositoryURI(ctx, repository); err != nil {
						return err
					}
				}
				return nil
			},
		})
	}

	if v.Secrets != nil {
		checks = append(checks, Check{
			Name: "secrets",
			Run: func(ctx context.Context) error {
				if cfg == nil {
					return fmt.Errorf("skipped: config did not load")
				}
				environments := cfg.TargetNames()
				if len(environments) == 0 {
					environments = []string{""}
				}
				checked := map[string]bool{}
				for _, environment := range environments {
					target, err := cfg.ResolveTarget(environment)
					if err != nil {
						return err
					}
					for _, ref := range target.Secrets {
						if ref.Provider == config.SecretProviderLocal || checked[ref.Key] {
							continue
						}
						if _, err := v.Secrets.Get(ctx, ref.Key); err != nil {
							return fmt.Errorf("%s: %w", ref.Name, err)
						}
						checked[ref.Key] = true
					}
				}
				return nil
			},
		})
	}

	if v.ServerURL != "" {
		checks = append(checks, Check{
			Name: "server",
			Run: func(ctx context.Context) error {
				return apiclient.NewWithToken(v.ServerURL, "").HealthCheck(ctx)
			},
		})
	}

	return checks
}
