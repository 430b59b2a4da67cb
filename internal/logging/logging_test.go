package logging

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(ch chan LogEntry, n int, timeout time.Duration) []LogEntry {
	var entries []LogEntry
	deadline := time.After(timeout)
	for len(entries) < n {
		select {
		case e := <-ch:
			entries = append(entries, e)
		case <-deadline:
			return entries
		}
	}
	return entries
}

func TestBrokerDeploymentFilter(t *testing.T) {
	broker := NewBroker()
	sub := broker.SubscribeDeployment("20250601120000")
	defer broker.UnsubscribeDeployment("20250601120000", sub)

	broker.Publish(LogEntry{DeploymentID: "20250601120000", Message: "mine"})
	broker.Publish(LogEntry{DeploymentID: "other", Message: "not mine"})

	entries := collect(sub, 1, time.Second)
	require.Len(t, entries, 1)
	assert.Equal(t, "mine", entries[0].Message)
}

func TestBrokerGeneralSubscriberSeesEverything(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(LogEntry{DeploymentID: "a", Message: "one"})
	broker.Publish(LogEntry{Message: "two"})

	entries := collect(sub, 2, time.Second)
	assert.Len(t, entries, 2)
}

func TestDeploymentLoggerCarriesIDAndMarkers(t *testing.T) {
	broker := NewBroker()
	sub := broker.SubscribeDeployment("dep-1")
	defer broker.UnsubscribeDeployment("dep-1", sub)

	logger := NewDeploymentLogger("dep-1", "staging", slog.LevelDebug, broker)
	logger.Info("service updated", "taskDef", "web:42")
	DeploymentComplete(logger, "deployment finished")

	entries := collect(sub, 2, time.Second)
	require.Len(t, entries, 2)

	assert.Equal(t, "dep-1", entries[0].DeploymentID)
	assert.Equal(t, "staging", entries[0].Environment)
	assert.Equal(t, "web:42", entries[0].Fields["taskDef"])
	assert.False(t, entries[0].IsDeploymentComplete)

	assert.True(t, entries[1].IsDeploymentComplete)
	assert.False(t, entries[1].IsDeploymentFailed)
}

func TestDeploymentFailedMarker(t *testing.T) {
	broker := NewBroker()
	sub := broker.SubscribeDeployment("dep-2")
	defer broker.UnsubscribeDeployment("dep-2", sub)

	logger := NewDeploymentLogger("dep-2", "production", slog.LevelInfo, broker)
	DeploymentFailed(logger, "service did not stabilize", assert.AnError)

	entries := collect(sub, 1, time.Second)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDeploymentFailed)
	assert.Equal(t, "ERROR", entries[0].Level)
}
