package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/eskildsen/stevedore/internal/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
name: app
region: us-east-1
targets:
  staging:
    cluster: app-staging
    service: app-staging
`

const brokenConfig = `
name: app
targets:
  staging:
    cluster: app-staging
    # service missing
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stevedore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func resultByName(results []CheckResult, name string) (CheckResult, bool) {
	for _, r := range results {
		if r.Name == name {
			return r, true
		}
	}
	return CheckResult{}, false
}

func TestValidatorPassesValidConfig(t *testing.T) {
	v := &Validator{ConfigPath: writeConfig(t, validConfig)}
	results, ok := v.Run(context.Background())
	assert.True(t, ok)

	cfgResult, found := resultByName(results, "config")
	require.True(t, found)
	assert.True(t, cfgResult.OK)

	targetsResult, found := resultByName(results, "targets")
	require.True(t, found)
	assert.True(t, targetsResult.OK)
}

func TestValidatorFlagsInvalidTarget(t *testing.T) {
	v := &Validator{ConfigPath: writeConfig(t, brokenConfig)}
	results, ok := v.Run(context.Background())
	assert.False(t, ok)

	targetsResult, found := resultByName(results, "targets")
	require.True(t, found)
	assert.False(t, targetsResult.OK)
	assert.Contains(t, targetsResult.Detail, "service")
}

func TestValidatorFlagsMissingConfig(t *testing.T) {
	v := &Validator{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")}
	_, ok := v.Run(context.Background())
	assert.False(t, ok)
}

func TestValidatorChecksServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer server.Close()

	v := &Validator{
		ConfigPath: writeConfig(t, validConfig),
		ServerURL:  server.URL,
	}
	results, ok := v.Run(context.Background())
	assert.True(t, ok)

	serverResult, found := resultByName(results, "server")
	require.True(t, found)
	assert.True(t, serverResult.OK)
}

func TestValidatorFlagsUnreachableServer(t *testing.T) {
	v := &Validator{
		ConfigPath: writeConfig(t, validConfig),
		ServerURL:  "http://127.0.0.1:1",
	}
	results, ok := v.Run(context.Background())
	assert.False(t, ok)

	serverResult, found := resultByName(results, "server")
	require.True(t, found)
	assert.False(t, serverResult.OK)
}

type fakeSecretStore struct {
	known map[string]string
}

func (f *fakeSecretStore) Set(ctx context.Context, name, value string) error { return nil }
func (f *fakeSecretStore) Get(ctx context.Context, name string) (string, error) {
	value, ok := f.known[name]
	if !ok {
		return "", fmt.Errorf("secret %s not found", name)
	}
	return value, nil
}
func (f *fakeSecretStore) List(ctx context.Context) ([]secrets.Info, error) { return nil, nil }
func (f *fakeSecretStore) Delete(ctx context.Context, name string) error    { return nil }

const configWithSecrets = `
name: app
region: us-east-1
targets:
  staging:
    cluster: app-staging
    service: app-staging
    secrets:
      - name: APP_KEY
        key: staging/app-key
      - name: SESSION_KEY
        provider: local
        key: session-key
`

func TestValidatorChecksSecretRefs(t *testing.T) {
	v := &Validator{
		ConfigPath: writeConfig(t, configWithSecrets),
		Secrets:    &fakeSecretStore{known: map[string]string{"staging/app-key": "ok"}},
	}
	results, ok := v.Run(context.Background())
	assert.True(t, ok)

	secretsResult, found := resultByName(results, "secrets")
	require.True(t, found)
	assert.True(t, secretsResult.OK)
}

func TestValidatorFlagsMissingSecretRef(t *testing.T) {
	v := &Validator{
		ConfigPath: writeConfig(t, configWithSecrets),
		Secrets:    &fakeSecretStore{},
	}
	results, ok := v.Run(context.Background())
	assert.False(t, ok)

	secretsResult, found := resultByName(results, "secrets")
	require.True(t, found)
	assert.False(t, secretsResult.OK)
	assert.Contains(t, secretsResult.Detail, "APP_KEY")
}

func TestValidatorRunsSingleCheck(t *testing.T) {
	v := &Validator{
		ConfigPath: writeConfig(t, validConfig),
		Only:       "targets",
	}
	results, ok := v.Run(context.Background())
	assert.True(t, ok)
	require.Len(t, results, 2) // config always runs first

	assert.Equal(t, "config", results[0].Name)
	assert.Equal(t, "targets", results[1].Name)
}

func TestValidatorRejectsUnknownCheck(t *testing.T) {
	v := &Validator{
		ConfigPath: writeConfig(t, validConfig),
		Only:       "dns",
	}
	results, ok := v.Run(context.Background())
	assert.False(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, "unknown check", results[0].Detail)
}
