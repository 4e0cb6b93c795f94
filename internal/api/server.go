// Package api exposes the assessment engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/biologic-optimizer/internal/domain"
	"github.com/biologic-optimizer/internal/service"
)

// HealthCheck is a named readiness probe for a backing dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server represents the HTTP server.
type Server struct {
	configManager domain.ConfigManager
	engine        *service.Engine
	formulary     domain.FormularyService
	checks        []HealthCheck
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance.
func NewServer(configManager domain.ConfigManager, engine *service.Engine, formulary domain.FormularyService, logger *logrus.Logger, checks ...HealthCheck) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(securityHeaders())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	server := &Server{
		configManager: configManager,
		engine:        engine,
		formulary:     formulary,
		checks:        checks,
		logger:        logger,
		router:        router,
	}

	server.setupRoutes()

	return server
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Handler returns the underlying HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/assessments", s.handleAssess)
		v1.GET("/formulary/:plan_id/:drug", s.handleGetFormularyEntry)
	}
}

// handleHealth reports liveness plus per-dependency readiness.
func (s *Server) handleHealth(c *gin.Context) {
	deps := gin.H{}
	healthy := true
	for _, check := range s.checks {
		if err := check.Check(c.Request.Context()); err != nil {
			deps[check.Name] = err.Error()
			healthy = false
		} else {
			deps[check.Name] = "ok"
		}
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":       state,
		"dependencies": deps,
		"timestamp":    time.Now().UTC(),
	})
}

// handleAssess runs a full assessment for the posted patient snapshot.
func (s *Server) handleAssess(c *gin.Context) {
	var input domain.AssessmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "invalid request body",
			"detail":     err.Error(),
			"request_id": c.GetString("request_id"),
		})
		return
	}

	result, err := s.engine.Assess(c.Request.Context(), &input)
	if err != nil {
		if domain.IsValidationError(err) {
			var ve *domain.ValidationError
			errors.As(err, &ve)
			c.JSON(http.StatusBadRequest, gin.H{
				"error":      ve.Message,
				"field":      ve.Field,
				"request_id": c.GetString("request_id"),
			})
			return
		}
		s.logger.WithError(err).Error("Assessment failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "assessment failed",
			"request_id": c.GetString("request_id"),
		})
		return
	}

	// Path and timing stay internal; callers see the recommendations only.
	c.JSON(http.StatusOK, gin.H{
		"recommendations": result.Recommendations,
	})
}

// handleGetFormularyEntry looks up a single formulary entry by plan and drug.
func (s *Server) handleGetFormularyEntry(c *gin.Context) {
	planID := c.Param("plan_id")
	drug := c.Param("drug")

	entry, err := s.formulary.GetEntry(c.Request.Context(), planID, drug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":      fmt.Sprintf("drug %q not on formulary for plan %q", drug, planID),
				"request_id": c.GetString("request_id"),
			})
			return
		}
		s.logger.WithError(err).Error("Formulary lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "formulary lookup failed",
			"request_id": c.GetString("request_id"),
		})
		return
	}

	c.JSON(http.StatusOK, entry)
}
