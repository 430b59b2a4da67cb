package api

import (
	"net/http"

	"github.com/eskildsen/stevedore/internal/apitypes"
)

func (s *Server) handleSecretsList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.localSecrets == nil {
			writeError(w, http.StatusServiceUnavailable, "local secret store not configured")
			return
		}

		list, err := s.localSecrets.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if err := writeJSON(w, http.StatusOK, apitypes.SecretsListResponse{Secrets: list}); err != nil {
			s.logger.Error("Failed to write JSON response", "error", err)
		}
	}
}

func (s *Server) handleSetSecret() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.localSecrets == nil {
			writeError(w, http.StatusServiceUnavailable, "local secret store not configured")
			return
		}

		var req apitypes.SetSecretRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Name == "" || req.Value == "" {
			writeError(w, http.StatusBadRequest, "name and value are required")
			return
		}

		if err := s.localSecrets.Set(r.Context(), req.Name, req.Value); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleDeleteSecret() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.localSecrets == nil {
			writeError(w, http.StatusServiceUnavailable, "local secret store not configured")
			return
		}

		name := r.PathValue("name")
		if name == "" {
			writeError(w, http.StatusBadRequest, "secret name is required")
			return
		}

		if err := s.localSecrets.Delete(r.Context(), name); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
