package awsutil

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// IsNotFound reports whether an AWS API error means the resource does not
// exist. The services involved use a handful of spellings for this.
func IsNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	switch code {
	case "ResourceNotFoundException",
		"RepositoryNotFoundException",
		"ClusterNotFoundException",
		"ServiceNotFoundException",
		"ImageNotFoundException",
		"DBInstanceNotFound",
		"CacheClusterNotFound",
		"TargetGroupNotFound":
		return true
	}
	// CloudFormation reports a missing stack as a ValidationError whose
	// message mentions the stack does not exist.
	if code == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "does not exist") {
		return true
	}
	return false
}

// IsAlreadyExists reports whether the error means the resource was
// created before, which the idempotent setup paths treat as success.
func IsAlreadyExists(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "ResourceExistsException",
		"RepositoryAlreadyExistsException",
		"AlreadyExistsException":
		return true
	}
	return false
}

// IsNoUpdates reports CloudFormation's "No updates are to be performed"
// response, which update-stack returns when the template is unchanged.
func IsNoUpdates(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ValidationError" &&
		strings.Contains(apiErr.ErrorMessage(), "No updates are to be performed")
}

// IsAccessDenied reports permission failures.
func IsAccessDenied(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation":
		return true
	}
	return false
}

// IsThrottled reports rate limiting, so pollers can keep waiting instead
// of failing the run.
func IsThrottled(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "Throttling", "ThrottlingException", "RequestLimitExceeded", "TooManyRequestsException":
		return true
	}
	return false
}
