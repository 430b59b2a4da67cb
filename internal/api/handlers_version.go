package api

import (
	"net/http"
	"os"
	"time"

	"github.com/eskildsen/stevedore/internal/apitypes"
	"github.com/eskildsen/stevedore/internal/constants"
)

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = writeJSON(w, http.StatusOK, apitypes.HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Environment: os.Getenv(constants.EnvVarEnvironment),
			Version:     constants.Version,
		})
	}
}

func (s *Server) handleVersion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = writeJSON(w, http.StatusOK, apitypes.VersionResponse{Version: constants.Version})
	}
}
