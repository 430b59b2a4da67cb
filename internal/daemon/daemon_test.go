package daemon

import (
	"context"
	"testing"

	"github.com/eskildsen/stevedore/internal/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsFromEnvDefaults(t *testing.T) {
	t.Setenv(constants.EnvVarRole, "")
	t.Setenv(constants.EnvVarConfigSource, "")
	t.Setenv(constants.EnvVarDataDir, "")
	t.Setenv(constants.EnvVarListenAddr, "")

	opts := OptionsFromEnv()
	assert.Equal(t, constants.RoleAll, opts.Role)
	assert.Equal(t, ".", opts.ConfigPath)
	assert.Equal(t, "/var/lib/stevedore", opts.DataDir)
	assert.Equal(t, ":"+constants.APIServerPort, opts.ListenAddr)
}

func TestOptionsFromEnvOverrides(t *testing.T) {
	t.Setenv(constants.EnvVarRole, constants.RoleWorker)
	t.Setenv(constants.EnvVarConfigSource, "/etc/stevedore")
	t.Setenv(constants.EnvVarDataDir, "/data")
	t.Setenv(constants.EnvVarListenAddr, ":9000")

	opts := OptionsFromEnv()
	assert.Equal(t, constants.RoleWorker, opts.Role)
	assert.Equal(t, "/etc/stevedore", opts.ConfigPath)
	assert.Equal(t, "/data", opts.DataDir)
	assert.Equal(t, ":9000", opts.ListenAddr)
}

func TestRunRejectsUnknownRole(t *testing.T) {
	err := Run(context.Background(), Options{Role: "database"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestRunFailsWithoutConfig(t *testing.T) {
	err := Run(context.Background(), Options{
		Role:       constants.RoleApp,
		ConfigPath: t.TempDir(),
		DataDir:    t.TempDir(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deployment config")
}
