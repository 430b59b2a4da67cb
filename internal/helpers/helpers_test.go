package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"already clean", "myapp-staging_web", "myapp-staging_web"},
		{"dots and slashes", "myapp.staging/web", "myapp-staging-web"},
		{"spaces", "my app", "my-app"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.input))
		})
	}
}

func TestShortARN(t *testing.T) {
	arn := "arn:aws:ecs:eu-north-1:123456789012:task-definition/myapp-web:42"
	assert.Equal(t, "task-definition/myapp-web:42", ShortARN(arn))
	assert.Equal(t, "service/staging/web", ShortARN("arn:aws:ecs:eu-north-1:123456789012:service/staging/web"))
	assert.Equal(t, "not-an-arn", ShortARN("not-an-arn"))
}

func TestTaskDefRevision(t *testing.T) {
	assert.Equal(t, 42, TaskDefRevision("arn:aws:ecs:eu-north-1:123:task-definition/web:42"))
	assert.Equal(t, 7, TaskDefRevision("web:7"))
	assert.Equal(t, 0, TaskDefRevision("web"))
	assert.Equal(t, 0, TaskDefRevision("web:"))
}

func TestFormatRelative(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"seconds", now.Add(-30 * time.Second), "30 seconds ago"},
		{"one minute", now.Add(-90 * time.Second), "1 minute ago"},
		{"hours", now.Add(-3 * time.Hour), "3 hours ago"},
		{"days", now.Add(-49 * time.Hour), "2 days ago"},
		{"future", now.Add(2 * time.Minute), "2 minutes from now"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatRelative(tt.t, now))
		})
	}
}

func TestNormalizeServerURL(t *testing.T) {
	got, err := NormalizeServerURL("deploy.example.com/")
	assert.NoError(t, err)
	assert.Equal(t, "https://deploy.example.com", got)

	got, err = NormalizeServerURL("http://localhost:7171")
	assert.NoError(t, err)
	assert.Equal(t, "http://localhost:7171", got)

	_, err = NormalizeServerURL("  ")
	assert.Error(t, err)
}
