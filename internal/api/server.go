// Package api is the daemon's HTTP surface: deploy, rollback, status,
// history, secrets, and log streaming.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/eskildsen/stevedore/internal/config"
	"github.com/eskildsen/stevedore/internal/db"
	"github.com/eskildsen/stevedore/internal/logging"
	"github.com/eskildsen/stevedore/internal/orchestrator"
	"github.com/eskildsen/stevedore/internal/secrets"
)

const shutdownTimeout = 10 * time.Second

// ServerConfig wires the server's dependencies.
type ServerConfig struct {
	ListenAddr string
	APIToken   string

	Config *config.DeploymentConfig
	Orch   *orchestrator.Orchestrator
	Store  *db.DB
	Broker *logging.Broker

	// LocalSecrets backs the secrets endpoints. May be nil; the
	// endpoints then return 503.
	LocalSecrets secrets.Store

	Logger   *slog.Logger
	LogLevel slog.Level
}

type Server struct {
	router       *http.ServeMux
	listenAddr   string
	apiToken     string
	deployConfig *config.DeploymentConfig
	orch         *orchestrator.Orchestrator
	store        *db.DB
	logBroker    *logging.Broker
	localSecrets secrets.Store
	logger       *slog.Logger
	logLevel     slog.Level
}

func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		router:       http.NewServeMux(),
		listenAddr:   cfg.ListenAddr,
		apiToken:     cfg.APIToken,
		deployConfig: cfg.Config,
		orch:         cfg.Orch,
		store:        cfg.Store,
		logBroker:    cfg.Broker,
		localSecrets: cfg.LocalSecrets,
		logger:       cfg.Logger,
		logLevel:     cfg.LogLevel,
	}
	s.setupRoutes()
	return s
}

// Start serves until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.listenAddr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", "addr", s.listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api server shutdown failed: %w", err)
		}
		s.logger.Info("API server stopped")
		return nil
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// resolveEnvironment maps an environment name onto a validated target.
func (s *Server) resolveEnvironment(environment string) (*config.TargetConfig, error) {
	if s.deployConfig == nil {
		return nil, fmt.Errorf("daemon has no deployment config loaded")
	}
	target, err := s.deployConfig.ResolveTarget(environment)
	if err != nil {
		return nil, err
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	return target, nil
}
