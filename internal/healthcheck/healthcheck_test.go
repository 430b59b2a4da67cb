package healthcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollerSucceedsAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","environment":"staging"}`))
	}))
	defer server.Close()

	poller := &Poller{
		URL:         server.URL,
		Interval:    10 * time.Millisecond,
		MaxAttempts: 5,
	}
	result, err := poller.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Healthy)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, http.StatusOK, result.LastStatus)
}

func TestPollerExhaustsBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	poller := &Poller{
		URL:         server.URL,
		Interval:    5 * time.Millisecond,
		MaxAttempts: 3,
	}
	result, err := poller.Run(context.Background())
	require.Error(t, err)
	assert.False(t, result.Healthy)
	assert.Equal(t, 3, result.Attempts)
	assert.ErrorContains(t, err, "after 3 attempts")
}

func TestPollerRejectsFailingStatusBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"degraded"}`))
	}))
	defer server.Close()

	poller := &Poller{URL: server.URL, Interval: time.Millisecond, MaxAttempts: 2}
	result, err := poller.Run(context.Background())
	assert.Error(t, err)
	assert.False(t, result.Healthy)
}

func TestPollerAcceptsNonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	poller := &Poller{URL: server.URL, Interval: time.Millisecond, MaxAttempts: 1}
	result, err := poller.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Healthy)
}

func TestPollerHonorsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	poller := &Poller{URL: server.URL, Interval: time.Hour, MaxAttempts: 10}
	_, err := poller.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
