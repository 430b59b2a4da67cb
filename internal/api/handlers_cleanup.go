package api

import (
	"fmt"
	"net/http"

	"github.com/eskildsen/stevedore/internal/apitypes"
	"github.com/eskildsen/stevedore/internal/jobs"
	"github.com/eskildsen/stevedore/internal/orchestrator"
)

// handleCleanup enqueues a cleanup pass for the environment.
func (s *Server) handleCleanup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		environment := r.PathValue("environment")

		target, err := s.resolveEnvironment(environment)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		deploymentID := orchestrator.CreateDeploymentID()
		jobID, err := jobs.Enqueue(s.store, orchestrator.Request{
			Kind:         orchestrator.KindCleanup,
			Environment:  environment,
			AppName:      s.deployConfig.Name,
			DeploymentID: deploymentID,
			Target:       target,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to enqueue cleanup: %v", err))
			return
		}

		response := apitypes.CleanupResponse{DeploymentID: deploymentID, JobID: jobID}
		if err := writeJSON(w, http.StatusAccepted, response); err != nil {
			s.logger.Error("Failed to write JSON response", "error", err)
		}
	}
}
