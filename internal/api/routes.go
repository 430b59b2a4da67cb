package api

func (s *Server) setupRoutes() {
	authMiddleware := s.bearerTokenAuthMiddleware
	logMiddleware := s.loggingMiddleware

	s.router.Handle("GET /health", s.handleHealth())
	s.router.Handle("GET /v1/version", authMiddleware(s.handleVersion()))

	s.router.Handle("POST /v1/deploy", logMiddleware(authMiddleware(s.handleDeploy())))
	s.router.Handle("GET /v1/deploy/{deploymentID}/logs", authMiddleware(s.handleDeploymentLogs()))

	// Logs stream
	s.router.Handle("GET /v1/logs", authMiddleware(s.handleLogs()))

	// Rollback routes
	s.router.Handle("POST /v1/rollback/{environment}", logMiddleware(authMiddleware(s.handleRollback())))

	// Cleanup routes
	s.router.Handle("POST /v1/cleanup/{environment}", logMiddleware(authMiddleware(s.handleCleanup())))

	// Status routes
	s.router.Handle("GET /v1/status/{environment}", authMiddleware(s.handleStatus()))
	s.router.Handle("GET /v1/deployments/{environment}", authMiddleware(s.handleDeployments()))

	// Secrets routes
	s.router.Handle("GET /v1/secrets", authMiddleware(s.handleSecretsList()))
	s.router.Handle("POST /v1/secrets", authMiddleware(s.handleSetSecret()))
	s.router.Handle("DELETE /v1/secrets/{name}", authMiddleware(s.handleDeleteSecret()))
}
