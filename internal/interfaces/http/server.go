// Package http exposes the approval route services over a JSON API.
// Handlers translate requests to service calls and nothing more.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/po-approval-route/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// DefaultCurrency is applied to companies created without a currency
	DefaultCurrency string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		DefaultCurrency: "USD",
	}
}

// Services are the application services served over HTTP
type Services struct {
	Directory    service.DirectoryService
	Team         service.TeamService
	Approval     service.ApprovalService
	Notification service.NotificationService
	Export       service.ExportService
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		handlers: NewHandlers(services, config.DefaultCurrency, logger),
		logger:   logger,
	}

	server.router.Use(gin.Recovery())
	server.router.Use(server.loggingMiddleware())
	server.setupRoutes()

	return server
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	{
		// Directory records are created before any user can act
		api.POST("/companies", h.CreateCompany)
		api.PUT("/companies/:id/approval-route", h.SetApprovalRoute)
		api.POST("/partners", h.CreatePartner)
		api.POST("/users", h.CreateUser)
		api.POST("/employees", h.CreateEmployee)
		api.GET("/users/:id/role", h.DetectRole)
		api.POST("/currencies/:code/rates", h.AddCurrencyRate)
	}

	acting := api.Group("", h.ActorMiddleware())
	{
		acting.GET("/teams", h.ListTeams)
		acting.POST("/teams", h.CreateTeam)
		acting.GET("/teams/:id", h.GetTeam)
		acting.PUT("/teams/:id", h.UpdateTeam)
		acting.DELETE("/teams/:id", h.DeleteTeam)
		acting.PUT("/teams/:id/members", h.SetMembers)
		acting.POST("/teams/:id/rules", h.AddRule)
		acting.PUT("/rules/:id", h.UpdateRule)
		acting.DELETE("/rules/:id", h.DeleteRule)

		acting.POST("/orders", h.CreateOrder)
		acting.GET("/orders/:id", h.GetOrder)
		acting.PUT("/orders/:id/team", h.SetOrderTeam)
		acting.PUT("/orders/:id/amount", h.UpdateAmount)
		acting.POST("/orders/:id/route", h.RegenerateRoute)
		acting.POST("/orders/:id/confirm", h.Confirm)
		acting.POST("/orders/:id/send", h.SendToApprove)
		acting.POST("/orders/:id/approve", h.Approve)
		acting.POST("/orders/:id/reject", h.Reject)
		acting.POST("/orders/:id/cancel", h.Cancel)
		acting.POST("/orders/:id/draft", h.ResetToDraft)
		acting.POST("/orders/:id/lock", h.Lock)
		acting.GET("/orders/:id/messages", h.ListMessages)
		acting.GET("/orders/:id/history", h.History)
		acting.GET("/orders/:id/route.xlsx", h.ExportRoute)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
