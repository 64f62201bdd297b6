package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/denysvitali/rclone-api-go/pkg/config"
	"github.com/denysvitali/rclone-api-go/pkg/gateway"
	"github.com/denysvitali/rclone-api-go/pkg/mcp"
	"github.com/denysvitali/rclone-api-go/pkg/rclone"
	"github.com/denysvitali/rclone-api-go/pkg/telemetry"
)

// Server represents the HTTP server
type Server struct {
	config    *config.Config
	logger    *logrus.Logger
	rclone    *rclone.Client
	gateway   *gateway.Service
	engine    *gin.Engine
	server    *http.Server
	startTime time.Time
}

// Option customizes a Server
type Option func(*options)

type options struct {
	runner rclone.Runner
}

// WithRunner replaces the subprocess runner used to invoke rclone
func WithRunner(runner rclone.Runner) Option {
	return func(o *options) {
		o.runner = runner
	}
}

// New creates a new server instance
func New(cfg *config.Config, logger *logrus.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Server.BearerToken == "" {
		logger.Warn("No bearer token configured, every authenticated request will be rejected")
	}

	client := rclone.NewClient(cfg.Rclone, o.runner, logger)
	gw := gateway.New(client, logger, cfg.Rclone.EmptyListingIsError)

	if logger.Level == logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(requestIDMiddleware())
	engine.Use(ginLogger(logger))
	engine.Use(gin.CustomRecovery(recoveryHandler(logger)))

	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware(telemetry.ServiceName))
	}

	engine.Use(corsMiddleware())

	server := &Server{
		config:    cfg,
		logger:    logger,
		rclone:    client,
		gateway:   gw,
		engine:    engine,
		startTime: time.Now(),
	}

	server.setupRoutes()

	return server, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.config.Server.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Listening on %s", s.config.Server.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Engine returns the gin engine for testing purposes
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check
	s.engine.GET("/alive", s.handleAlive)

	authorized := s.engine.Group("/")
	authorized.Use(authMiddleware(s.config.Server.BearerToken))

	authorized.POST("/upload_encrypted", s.handleUploadEncrypted)
	authorized.POST("/delete_file", s.handleDeleteFile)
	authorized.GET("/list_encrypted_files", s.handleListEncryptedFiles)
	authorized.GET("/server_info", s.handleServerInfo)

	if s.config.Server.EnableMCP {
		mcpServer := mcp.NewServer(s.logger, s.gateway, telemetry.ServiceVersion)
		authorized.Any(fmt.Sprintf("%s/*path", mcp.BasePath), gin.WrapH(mcpServer.Handler()))
		s.logger.Infof("MCP tools available at %s/sse", mcp.BasePath)
	}
}
