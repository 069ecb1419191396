package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/testimony-api/api/types"
	"github.com/killallgit/testimony-api/pkg/config"
	"github.com/killallgit/testimony-api/pkg/logger"
)

// Server represents the HTTP server
type Server struct {
	engine       *gin.Engine
	httpServer   *http.Server
	rateLimiters *RateLimiters
	rateLimiting config.RateLimitConfig
	log          *logger.Logger

	// Dependencies for handlers
	dependencies *types.Dependencies
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, rl config.RateLimitConfig, deps *types.Dependencies, log *logger.Logger) *Server {
	log = logger.OrDefault(log).WithComponent("api")

	// Create Gin engine with recovery middleware only
	engine := gin.New()
	engine.Use(gin.Recovery())

	if deps == nil {
		deps = &types.Dependencies{}
	}
	if deps.Logger == nil {
		deps.Logger = log
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 60 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 60 * time.Second
	}
	maxHeader := cfg.MaxHeaderBytes
	if maxHeader <= 0 {
		maxHeader = 1 << 20 // 1 MB
	}

	return &Server{
		engine:       engine,
		rateLimiters: NewRateLimiters(),
		rateLimiting: rl,
		log:          log,
		dependencies: deps,
		httpServer: &http.Server{
			Addr:           net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:        engine,
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: maxHeader,
		},
	}
}

// Engine returns the Gin engine for testing
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr is the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Initialize sets up middleware and routes
func (s *Server) Initialize() error {
	s.engine.Use(RequestLogger(s.log))
	s.engine.Use(CORS())

	return RegisterRoutes(s.engine, s.dependencies, s.rateLimiters, s.rateLimiting)
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiters.Stop()
	return s.httpServer.Shutdown(ctx)
}
