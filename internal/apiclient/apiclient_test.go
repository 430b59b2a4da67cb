package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eskildsen/stevedore/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeploySendsAuthAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v1/deploy", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"deploymentId":"20240102030405","jobId":"01H"}`)
	}))
	defer server.Close()

	client := NewWithToken(server.URL, "tok")
	resp, err := client.Deploy(context.Background(), "staging", "")
	require.NoError(t, err)
	assert.Equal(t, "20240102030405", resp.DeploymentID)
	assert.Equal(t, "01H", resp.JobID)
}

func TestErrorResponseSurfacesServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":"environment \"qa\" not found in config"}`)
	}))
	defer server.Close()

	client := NewWithToken(server.URL, "tok")
	_, err := client.Deploy(context.Background(), "qa", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `environment "qa" not found`)
}

func TestUnauthorizedMentionsTokenEnv(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewWithToken(server.URL, "wrong")
	_, err := client.Status(context.Background(), "staging")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STEVEDORE_API_TOKEN")
}

func TestFollowDeploymentStopsOnCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/deploy/20240102030405/logs", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, `data: {"level":"INFO","message":"Starting deployment"}`+"\n\n")
		fmt.Fprint(w, `data: {"level":"INFO","message":"done","isDeploymentComplete":true}`+"\n\n")
	}))
	defer server.Close()

	client := NewWithToken(server.URL, "tok")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.FollowDeployment(ctx, "20240102030405"))
}

func TestFollowDeploymentReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"level":"ERROR","message":"boom","isDeploymentFailed":true}`+"\n\n")
	}))
	defer server.Close()

	client := NewWithToken(server.URL, "tok")
	err := client.FollowDeployment(context.Background(), "20240102030405")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer server.Close()

	client := NewWithToken(server.URL, "")
	require.NoError(t, client.HealthCheck(context.Background()))
}

func TestDisplayLogEntryDoesNotPanic(t *testing.T) {
	DisplayLogEntry(logging.LogEntry{Level: "INFO", Message: "hello"})
	DisplayLogEntry(logging.LogEntry{Level: "ERROR", Message: "bad", Fields: map[string]any{"error": "cause"}})
}
