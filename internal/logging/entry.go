package logging

import "time"

// LogEntry is the wire format for log lines streamed to CLI clients.
type LogEntry struct {
	Timestamp            time.Time      `json:"timestamp"`
	Level                string         `json:"level"`
	Message              string         `json:"message"`
	DeploymentID         string         `json:"deploymentId,omitempty"`
	Environment          string         `json:"environment,omitempty"`
	Fields               map[string]any `json:"fields,omitempty"`
	IsDeploymentComplete bool           `json:"isDeploymentComplete,omitempty"`
	IsDeploymentFailed   bool           `json:"isDeploymentFailed,omitempty"`
}

// Attribute keys with special meaning to the broker handler.
const (
	attrDeploymentID       = "deploymentID"
	attrEnvironment        = "environment"
	attrDeploymentComplete = "deploymentComplete"
	attrDeploymentFailed   = "deploymentFailed"
)
