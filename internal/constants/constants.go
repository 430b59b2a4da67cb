package constants

import "os"

const (
	Version = "0.3.1"

	DefaultRegion            = "us-east-1"
	DefaultContainerName     = "app"
	DefaultContainerPort     = 8080
	DefaultDesiredCount      = 1
	DefaultDeploymentsToKeep = 6
	DefaultHealthCheckPath   = "/health"
	DefaultHealthAttempts    = 20

	APIServerPort       = "7171"
	DefaultAPIServerURL = "http://localhost:7171" // Default URL for the stevedored API server

	// Environment variables
	EnvVarAPIToken     = "STEVEDORE_API_TOKEN"
	EnvVarAgeIdentity  = "STEVEDORE_ENCRYPTION_KEY"
	EnvVarRole         = "STEVEDORE_ROLE"
	EnvVarDataDir      = "STEVEDORE_DATA_DIR"
	EnvVarAWSEndpoint  = "STEVEDORE_AWS_ENDPOINT" // LocalStack-style endpoint override
	EnvVarListenAddr   = "STEVEDORE_LISTEN"
	EnvVarEnvironment  = "STEVEDORE_ENVIRONMENT"
	EnvVarConfigSource = "STEVEDORE_CONFIG"

	// File names
	ConfigEnvFileName    = ".env"
	ClientConfigFileName = "client.yaml"
	DBFileName           = "stevedore.db"
)

// Container roles selected by the daemon entrypoint.
const (
	RoleApp       = "app"
	RoleWorker    = "worker"
	RoleScheduler = "scheduler"
	RoleAll       = "all"
)

// File and directory permissions
const (
	ModeFileSecret  os.FileMode = 0o600 // secrets: .env, keys
	ModeFileDefault os.FileMode = 0o644 // non-secret configs
	ModeDirPrivate  os.FileMode = 0o700 // private dirs
)
