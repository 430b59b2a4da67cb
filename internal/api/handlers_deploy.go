package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/eskildsen/stevedore/internal/apitypes"
	"github.com/eskildsen/stevedore/internal/db"
	"github.com/eskildsen/stevedore/internal/jobs"
	"github.com/eskildsen/stevedore/internal/logging"
	"github.com/eskildsen/stevedore/internal/orchestrator"
)

// handleDeploy enqueues a deployment for the worker and returns the
// deployment ID so the client can stream its logs.
func (s *Server) handleDeploy() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apitypes.DeployRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Environment == "" {
			writeError(w, http.StatusBadRequest, "environment is required")
			return
		}

		target, err := s.resolveEnvironment(req.Environment)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		deploymentID := orchestrator.CreateDeploymentID()
		jobID, err := jobs.Enqueue(s.store, orchestrator.Request{
			Kind:         orchestrator.KindDeploy,
			Environment:  req.Environment,
			AppName:      s.deployConfig.Name,
			DeploymentID: deploymentID,
			ImageTag:     req.ImageTag,
			Target:       target,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to enqueue deployment: %v", err))
			return
		}

		response := apitypes.DeployResponse{DeploymentID: deploymentID, JobID: jobID}
		if err := writeJSON(w, http.StatusAccepted, response); err != nil {
			s.logger.Error("Failed to write JSON response", "error", err)
		}
	}
}

// handleDeploymentLogs streams one deployment's log entries as
// Server-Sent Events until the deployment completes or fails.
func (s *Server) handleDeploymentLogs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deploymentID := r.PathValue("deploymentID")
		if deploymentID == "" {
			writeError(w, http.StatusBadRequest, "deployment ID is required")
			return
		}

		setSSEHeaders(w)

		logChan := s.logBroker.SubscribeDeployment(deploymentID)
		defer s.logBroker.UnsubscribeDeployment(deploymentID, logChan)

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
			return
		}
		flusher.Flush()

		// The worker may have finished before this subscription landed;
		// replay the terminal state so the client does not hang on
		// keepalives forever.
		if entry, done := s.terminalEntry(deploymentID); done {
			if err := writeSSEMessage(w, entry); err != nil {
				return
			}
			flusher.Flush()
			return
		}

		ctx := r.Context()
		keepaliveTicker := time.NewTicker(30 * time.Second)
		defer keepaliveTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return

			case <-keepaliveTicker.C:
				if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
					return
				}
				flusher.Flush()

			case logEntry, ok := <-logChan:
				if !ok {
					return
				}

				if err := writeSSEMessage(w, logEntry); err != nil {
					return
				}
				flusher.Flush()

				if logEntry.IsDeploymentComplete || logEntry.IsDeploymentFailed {
					return
				}
			}
		}
	}
}

// terminalEntry synthesizes the closing log entry for a deployment whose
// job already reached a terminal state.
func (s *Server) terminalEntry(deploymentID string) (logging.LogEntry, bool) {
	job, err := s.store.JobByDeploymentID(deploymentID)
	if err != nil {
		return logging.LogEntry{}, false
	}
	entry := logging.LogEntry{
		Timestamp:    time.Now(),
		DeploymentID: deploymentID,
	}
	switch job.State {
	case db.JobStateDone:
		entry.Level = "INFO"
		entry.Message = fmt.Sprintf("Deployment %s complete", deploymentID)
		entry.IsDeploymentComplete = true
		return entry, true
	case db.JobStateFailed:
		entry.Level = "ERROR"
		entry.Message = fmt.Sprintf("Deployment %s failed", deploymentID)
		if job.LastError != nil {
			entry.Message = fmt.Sprintf("Deployment %s failed: %s", deploymentID, *job.LastError)
		}
		entry.IsDeploymentFailed = true
		return entry, true
	}
	return logging.LogEntry{}, false
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// writeSSEMessage writes a log entry as a Server-Sent Event.
func writeSSEMessage(w http.ResponseWriter, entry logging.LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write SSE data: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	_ = writeJSON(w, status, apitypes.ErrorResponse{Error: msg})
}
