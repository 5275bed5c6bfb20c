// Package server exposes the face pipeline over HTTP and websocket.
package server

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/dudu/facegaze/internal/metrics"
)

// ServerOption configures a Server
type ServerOption func(*Server) error

// Server hosts the fiber app
type Server struct {
	engine    *fiber.App
	log       *logrus.Logger
	validator *validator.Validate
	sessions  SessionFactory
	stats     *metrics.Metrics
	limiter   *rateLimiter
	timeout   time.Duration
	handlers  []handler
}

type handler interface {
	Start(srv fiber.Router)
}

// NewServer applies options and checks required parts
func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{timeout: 10 * time.Second}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.sessions == nil {
		return nil, fmt.Errorf("session factory is required")
	}
	if server.validator == nil {
		server.validator = validator.New()
	}

	return server, nil
}

func WithFiber(app *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = app
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(v *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = v
		return nil
	}
}

func WithSessions(f SessionFactory) ServerOption {
	return func(s *Server) error {
		s.sessions = f
		return nil
	}
}

func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) error {
		s.stats = m
		return nil
	}
}

// WithRateLimit limits each client IP to perSecond requests with the given burst
func WithRateLimit(perSecond float64, burst int) ServerOption {
	return func(s *Server) error {
		if perSecond <= 0 || burst <= 0 {
			return fmt.Errorf("rate limit must be positive")
		}
		s.limiter = newRateLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

func WithTimeout(d time.Duration) ServerOption {
	return func(s *Server) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive")
		}
		s.timeout = d
		return nil
	}
}

// RegisterHandler mounts middleware and routes
func (s *Server) RegisterHandler() {
	s.engine.Use(requestIDMiddleware())
	s.engine.Use(loggingMiddleware(s.log))

	s.setupHealthCheck()
	if s.stats != nil {
		s.engine.Get("/metrics", adaptor.HTTPHandler(s.stats.Handler()))
	}

	router := s.engine.Group("/api/v1")
	if s.limiter != nil {
		router.Use(s.limiter.handler(s.log))
	}

	s.handlers = append(s.handlers, NewFaceHandler(s.log, s.validator, s.sessions, s.stats, s.timeout))
	for _, h := range s.handlers {
		h.Start(router)
	}
}

// Run listens on port until the app shuts down
func (s *Server) Run(port string) error {
	s.log.WithField("port", port).Info("server listening")
	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown() error {
	return s.engine.Shutdown()
}

// App returns the fiber app, mainly for tests
func (s *Server) App() *fiber.App {
	return s.engine
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
