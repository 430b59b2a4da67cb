package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/eskildsen/stevedore/internal/apitypes"
	"github.com/eskildsen/stevedore/internal/jobs"
	"github.com/eskildsen/stevedore/internal/orchestrator"
)

// handleRollback enqueues a rollback. The request body is optional; an
// empty body rolls back to the deployment before the current one.
func (s *Server) handleRollback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		environment := r.PathValue("environment")

		var req apitypes.RollbackRequest
		if err := decodeJSON(r.Body, &req); err != nil && !isEmptyBody(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.TargetDeploymentID != "" {
			if err := orchestrator.ValidateDeploymentID(req.TargetDeploymentID); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		target, err := s.resolveEnvironment(environment)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		deploymentID := orchestrator.CreateDeploymentID()
		jobID, err := jobs.Enqueue(s.store, orchestrator.Request{
			Kind:               orchestrator.KindRollback,
			Environment:        environment,
			AppName:            s.deployConfig.Name,
			DeploymentID:       deploymentID,
			TargetDeploymentID: req.TargetDeploymentID,
			Target:             target,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to enqueue rollback: %v", err))
			return
		}

		response := apitypes.RollbackResponse{DeploymentID: deploymentID, JobID: jobID}
		if err := writeJSON(w, http.StatusAccepted, response); err != nil {
			s.logger.Error("Failed to write JSON response", "error", err)
		}
	}
}

func isEmptyBody(err error) bool {
	return errors.Is(err, io.EOF) || err.Error() == "request body must not be empty"
}
