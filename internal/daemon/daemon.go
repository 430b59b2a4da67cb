// Package daemon boots stevedored: it loads the deployment config,
// opens the state database, builds the AWS-backed orchestrator, and
// runs the components the configured role asks for.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/eskildsen/stevedore/internal/api"
	"github.com/eskildsen/stevedore/internal/awsutil"
	"github.com/eskildsen/stevedore/internal/config"
	"github.com/eskildsen/stevedore/internal/constants"
	"github.com/eskildsen/stevedore/internal/db"
	"github.com/eskildsen/stevedore/internal/jobs"
	"github.com/eskildsen/stevedore/internal/logging"
	"github.com/eskildsen/stevedore/internal/orchestrator"
	"github.com/eskildsen/stevedore/internal/registry"
	"github.com/eskildsen/stevedore/internal/scheduler"
	"github.com/eskildsen/stevedore/internal/secrets"
	"github.com/eskildsen/stevedore/internal/stack"
	"golang.org/x/sync/errgroup"
)

const (
	maintenanceInterval = time.Hour
	statusProbeInterval = 5 * time.Minute
)

// Options configure the daemon, normally from environment variables.
type Options struct {
	// Role selects which components run: app (API), worker (job
	// execution), scheduler (periodic maintenance), or all.
	Role string

	ConfigPath string
	DataDir    string
	ListenAddr string
	APIToken   string

	Debug bool
}

// OptionsFromEnv reads the daemon configuration from the environment.
func OptionsFromEnv() Options {
	opts := Options{
		Role:       os.Getenv(constants.EnvVarRole),
		ConfigPath: os.Getenv(constants.EnvVarConfigSource),
		DataDir:    os.Getenv(constants.EnvVarDataDir),
		ListenAddr: os.Getenv(constants.EnvVarListenAddr),
		APIToken:   os.Getenv(constants.EnvVarAPIToken),
	}
	if opts.Role == "" {
		opts.Role = constants.RoleAll
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "."
	}
	if opts.DataDir == "" {
		opts.DataDir = "/var/lib/stevedore"
	}
	if opts.ListenAddr == "" {
		opts.ListenAddr = ":" + constants.APIServerPort
	}
	return opts
}

// Run assembles the daemon and blocks until the context is canceled or
// a component fails.
func Run(ctx context.Context, opts Options) error {
	switch opts.Role {
	case constants.RoleApp, constants.RoleWorker, constants.RoleScheduler, constants.RoleAll:
	default:
		return fmt.Errorf("unknown role %q (valid: %s, %s, %s, %s)",
			opts.Role, constants.RoleApp, constants.RoleWorker, constants.RoleScheduler, constants.RoleAll)
	}

	logLevel := slog.LevelInfo
	if opts.Debug {
		logLevel = slog.LevelDebug
	}
	broker := logging.NewBroker()
	logger := logging.NewLogger(logLevel, broker)

	path, err := config.FindConfigFile(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("deployment config: %w", err)
	}
	deployConfig, format, err := config.LoadDeploymentConfig(path)
	if err != nil {
		return fmt.Errorf("deployment config: %w", err)
	}
	logger.Info("Loaded deployment config", "path", path, "format", format, "app", deployConfig.Name)

	base, err := deployConfig.ResolveTarget("")
	if err != nil {
		return fmt.Errorf("deployment config: %w", err)
	}

	store, err := db.New(opts.DataDir)
	if err != nil {
		return fmt.Errorf("state database: %w", err)
	}
	defer store.Close()

	clients, err := awsutil.New(ctx, base.Region, os.Getenv(constants.EnvVarAWSEndpoint))
	if err != nil {
		return fmt.Errorf("aws clients: %w", err)
	}

	// The local secret store needs the age identity. Without it the
	// daemon still runs; the secrets endpoints return 503 and "local"
	// secret refs fail at deploy time.
	var localSecrets secrets.Store
	if localStore, err := secrets.NewLocalStore(store); err != nil {
		logger.Warn("Local secret store disabled", "error", err)
	} else {
		localSecrets = localStore
	}

	orch := orchestrator.New(orchestrator.Options{
		ECS:          clients.ECS,
		ELB:          clients.ELB,
		RDS:          clients.RDS,
		ElastiCache:  clients.ElastiCache,
		Registry:     registry.NewManager(clients.ECR, logger),
		Stacks:       stack.NewManager(clients.CloudFormation, logger),
		Store:        store,
		LocalSecrets: localSecrets,
		Logger:       logger,
	})

	group, ctx := errgroup.WithContext(ctx)

	if opts.Role == constants.RoleApp || opts.Role == constants.RoleAll {
		server := api.NewServer(api.ServerConfig{
			ListenAddr:   opts.ListenAddr,
			APIToken:     opts.APIToken,
			Config:       deployConfig,
			Orch:         orch,
			Store:        store,
			Broker:       broker,
			LocalSecrets: localSecrets,
			Logger:       logger,
			LogLevel:     logLevel,
		})
		group.Go(func() error {
			logger.Info("API server starting", "addr", opts.ListenAddr, "role", opts.Role)
			return server.Start(ctx)
		})
	}

	if opts.Role == constants.RoleWorker || opts.Role == constants.RoleAll {
		worker := jobs.NewWorker(store, orch, broker, logger)
		group.Go(func() error {
			logger.Info("Job worker starting", "role", opts.Role)
			return worker.Run(ctx)
		})
	}

	if opts.Role == constants.RoleScheduler || opts.Role == constants.RoleAll {
		sched := scheduler.New(logger)
		registerMaintenance(sched, deployConfig, orch, logger)
		group.Go(func() error {
			logger.Info("Scheduler starting", "tasks", sched.Tasks(), "role", opts.Role)
			return sched.Run(ctx)
		})
	}

	return group.Wait()
}

// registerMaintenance adds the periodic cleanup tasks: per-environment
// artifact pruning plus finished-job retention.
func registerMaintenance(sched *scheduler.Scheduler, deployConfig *config.DeploymentConfig, orch *orchestrator.Orchestrator, logger *slog.Logger) {
	environments := deployConfig.TargetNames()
	if len(environments) == 0 {
		environments = []string{""}
	}
	for _, environment := range environments {
		environment := environment
		name := "cleanup"
		if environment != "" {
			name = "cleanup-" + environment
		}
		sched.Register(scheduler.Task{
			Name:     name,
			Interval: maintenanceInterval,
			Run: func(ctx context.Context) error {
				target, err := deployConfig.ResolveTarget(environment)
				if err != nil {
					return err
				}
				if err := target.Validate(); err != nil {
					return err
				}
				return orch.Cleanup(ctx, orchestrator.Request{
					Kind:        orchestrator.KindCleanup,
					Environment: environment,
					AppName:     deployConfig.Name,
					Target:      target,
				}, logger)
			},
		})

		probeName := "status-probe"
		if environment != "" {
			probeName = "status-probe-" + environment
		}
		sched.Register(scheduler.Task{
			Name:     probeName,
			Interval: statusProbeInterval,
			Run: func(ctx context.Context) error {
				target, err := deployConfig.ResolveTarget(environment)
				if err != nil {
					return err
				}
				report, err := orch.Status(ctx, environment, target)
				if err != nil {
					return err
				}
				if report.AppStatus == orchestrator.AppStatusDegraded {
					logger.Warn("Environment degraded",
						"environment", environment,
						"running", report.Service.Running,
						"desired", report.Service.Desired,
						"rollout", report.Service.RolloutState)
				}
				return nil
			},
		})
	}
}
