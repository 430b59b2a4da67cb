package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eskildsen/stevedore/internal/apitypes"
	"github.com/eskildsen/stevedore/internal/config"
	"github.com/eskildsen/stevedore/internal/db"
	"github.com/eskildsen/stevedore/internal/logging"
	"github.com/eskildsen/stevedore/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

func testServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	store, err := db.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deployConfig := &config.DeploymentConfig{
		Name: "app",
		Targets: map[string]*config.TargetConfig{
			"staging": {
				Cluster: "app-staging",
				Service: "app-staging",
			},
		},
	}

	server := NewServer(ServerConfig{
		ListenAddr: "127.0.0.1:0",
		APIToken:   testToken,
		Config:     deployConfig,
		Orch:       orchestrator.New(orchestrator.Options{Store: store, Logger: logger}),
		Store:      store,
		Broker:     logging.NewBroker(),
		Logger:     logger,
	})
	return server, store
}

func doRequest(t *testing.T, server *Server, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, decodeJSON(rec.Body, &v))
	return v
}

func TestHealthNeedsNoAuth(t *testing.T) {
	server, _ := testServer(t)
	rec := doRequest(t, server, http.MethodGet, "/health", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse[apitypes.HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
}

func TestVersionRequiresAuth(t *testing.T) {
	server, _ := testServer(t)

	rec := doRequest(t, server, http.MethodGet, "/v1/version", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/v1/version", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse[apitypes.VersionResponse](t, rec)
	assert.NotEmpty(t, resp.Version)
}

func TestRejectsBadBearerToken(t *testing.T) {
	server, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/version", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeployEnqueuesJob(t *testing.T) {
	server, store := testServer(t)

	rec := doRequest(t, server, http.MethodPost, "/v1/deploy", `{"environment":"staging"}`, true)
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decodeResponse[apitypes.DeployResponse](t, rec)
	assert.NotEmpty(t, resp.DeploymentID)
	assert.NotEmpty(t, resp.JobID)

	pending, err := store.CountJobs(db.JobStatePending)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestDeployUnknownEnvironment(t *testing.T) {
	server, _ := testServer(t)
	rec := doRequest(t, server, http.MethodPost, "/v1/deploy", `{"environment":"qa"}`, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDeployRejectsUnknownFields(t *testing.T) {
	server, _ := testServer(t)
	rec := doRequest(t, server, http.MethodPost, "/v1/deploy", `{"environment":"staging","force":true}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRollbackValidatesDeploymentID(t *testing.T) {
	server, _ := testServer(t)
	rec := doRequest(t, server, http.MethodPost, "/v1/rollback/staging", `{"targetDeploymentId":"bogus"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRollbackWithEmptyBodyEnqueues(t *testing.T) {
	server, store := testServer(t)
	rec := doRequest(t, server, http.MethodPost, "/v1/rollback/staging", "", true)
	require.Equal(t, http.StatusAccepted, rec.Code)

	pending, err := store.CountJobs(db.JobStatePending)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestDeploymentsListing(t *testing.T) {
	server, store := testServer(t)
	require.NoError(t, store.SaveDeployment(db.Deployment{
		ID:          "20240102030405",
		Environment: "staging",
		AppName:     "app",
		ImageRef:    "repo/app:20240102030405",
		TaskDefARN:  "arn:aws:ecs:::task-definition/app:1",
		CreatedAt:   time.Now(),
	}))

	rec := doRequest(t, server, http.MethodGet, "/v1/deployments/staging", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse[apitypes.DeploymentsResponse](t, rec)
	require.Len(t, resp.Deployments, 1)
	assert.Equal(t, "20240102030405", resp.Deployments[0].ID)
}

func TestDeploymentLogsReplayFinishedJob(t *testing.T) {
	server, store := testServer(t)
	require.NoError(t, store.InsertJob(db.Job{
		ID:      "01ARZ3NDEKTSV4RRFFQ69G5FAA",
		Kind:    "deploy",
		Payload: json.RawMessage(`{"kind":"deploy","environment":"staging","deploymentId":"2025060112000000"}`),
	}))
	job, err := store.ClaimNextJob()
	require.NoError(t, err)
	require.NoError(t, store.CompleteJob(job.ID))

	// The job finished before the client subscribed; the stream must
	// still deliver a terminal entry instead of hanging.
	rec := doRequest(t, server, http.MethodGet, "/v1/deploy/2025060112000000/logs", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "isDeploymentComplete")
}

func TestDeploymentLogsReplayFailedJob(t *testing.T) {
	server, store := testServer(t)
	require.NoError(t, store.InsertJob(db.Job{
		ID:      "01ARZ3NDEKTSV4RRFFQ69G5FAB",
		Kind:    "deploy",
		Payload: json.RawMessage(`{"kind":"deploy","environment":"staging","deploymentId":"2025060112000001"}`),
	}))
	job, err := store.ClaimNextJob()
	require.NoError(t, err)
	require.NoError(t, store.FailJob(job.ID, assert.AnError))

	rec := doRequest(t, server, http.MethodGet, "/v1/deploy/2025060112000001/logs", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "isDeploymentFailed")
	assert.Contains(t, body, assert.AnError.Error())
}

func TestSecretsEndpointsWithoutStore(t *testing.T) {
	server, _ := testServer(t)
	rec := doRequest(t, server, http.MethodGet, "/v1/secrets", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(t, server, http.MethodPost, "/v1/secrets", `{"name":"k","value":"v"}`, true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
