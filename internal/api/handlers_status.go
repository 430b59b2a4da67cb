package api

import (
	"net/http"

	"github.com/eskildsen/stevedore/internal/apitypes"
)

// handleStatus probes the environment's resources and returns the
// aggregated report.
func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		environment := r.PathValue("environment")

		target, err := s.resolveEnvironment(environment)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		report, err := s.orch.Status(r.Context(), environment, target)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if err := writeJSON(w, http.StatusOK, report); err != nil {
			s.logger.Error("Failed to write JSON response", "error", err)
		}
	}
}

// handleDeployments lists the environment's recorded deployments.
func (s *Server) handleDeployments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		environment := r.PathValue("environment")

		deployments, err := s.store.ListDeployments(environment, 0)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		response := apitypes.DeploymentsResponse{
			Deployments: make([]apitypes.DeploymentSummary, 0, len(deployments)),
		}
		for _, d := range deployments {
			response.Deployments = append(response.Deployments, apitypes.DeploymentSummary{
				ID:             d.ID,
				Environment:    d.Environment,
				AppName:        d.AppName,
				ImageRef:       d.ImageRef,
				RolledBackFrom: d.RolledBackFrom,
				CreatedAt:      d.CreatedAt,
			})
		}

		if err := writeJSON(w, http.StatusOK, response); err != nil {
			s.logger.Error("Failed to write JSON response", "error", err)
		}
	}
}
