package awsutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func apiErr(code, message string) error {
	return &smithy.GenericAPIError{Code: code, Message: message}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"service not found", apiErr("ServiceNotFoundException", ""), true},
		{"repository not found", apiErr("RepositoryNotFoundException", ""), true},
		{"missing stack", apiErr("ValidationError", "Stack with id myapp-staging does not exist"), true},
		{"other validation error", apiErr("ValidationError", "No updates are to be performed."), false},
		{"wrapped", fmt.Errorf("describe: %w", apiErr("ClusterNotFoundException", "")), true},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotFound(tt.err))
		})
	}
}

func TestIsAlreadyExists(t *testing.T) {
	assert.True(t, IsAlreadyExists(apiErr("RepositoryAlreadyExistsException", "")))
	assert.True(t, IsAlreadyExists(apiErr("ResourceExistsException", "")))
	assert.False(t, IsAlreadyExists(apiErr("ValidationError", "")))
	assert.False(t, IsAlreadyExists(errors.New("boom")))
}

func TestIsNoUpdates(t *testing.T) {
	assert.True(t, IsNoUpdates(apiErr("ValidationError", "No updates are to be performed.")))
	assert.False(t, IsNoUpdates(apiErr("ValidationError", "Stack does not exist")))
	assert.False(t, IsNoUpdates(errors.New("boom")))
}

func TestIsThrottled(t *testing.T) {
	assert.True(t, IsThrottled(apiErr("ThrottlingException", "")))
	assert.True(t, IsThrottled(fmt.Errorf("poll: %w", apiErr("Throttling", "Rate exceeded"))))
	assert.False(t, IsThrottled(apiErr("AccessDenied", "")))
}
