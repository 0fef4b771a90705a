// Package http serves the document manager JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/docmanager/internal/auth"
	"github.com/fyrsmithlabs/docmanager/internal/documents"
	"github.com/fyrsmithlabs/docmanager/internal/logging"
	"github.com/fyrsmithlabs/docmanager/internal/settings"
)

// APIPrefix is the route group of the document API.
const APIPrefix = "/documents/api"

// Server provides HTTP endpoints for the document manager.
type Server struct {
	echo     *echo.Echo
	docs     *documents.Service
	settings settings.Store
	verifier *auth.Verifier
	metrics  *HTTPMetrics
	logger   *zap.Logger
	config   *Config
	now      func() time.Time
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// DestructiveRate limits remove and clear requests per second per caller.
	DestructiveRate float64
	// DestructiveBurst is the number of destructive requests allowed at once.
	DestructiveBurst int
}

// DefaultConfig returns the default listener and limits.
func DefaultConfig() *Config {
	return &Config{
		Host:             "localhost",
		Port:             9090,
		DestructiveRate:  1,
		DestructiveBurst: 5,
	}
}

// NewServer creates a new HTTP server. settingsStore may be nil, in which
// case the default settings apply.
func NewServer(docs *documents.Service, settingsStore settings.Store, verifier *auth.Verifier, logger *zap.Logger, cfg *Config) (*Server, error) {
	if docs == nil {
		return nil, fmt.Errorf("document service cannot be nil")
	}
	if verifier == nil {
		return nil, fmt.Errorf("token verifier cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		docs:     docs,
		settings: settingsStore,
		verifier: verifier,
		metrics:  NewHTTPMetrics(logger),
		logger:   logger.Named("http"),
		config:   cfg,
		now:      time.Now,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.metrics.Middleware())
	e.Use(s.requestLogger)

	s.registerRoutes()
	return s, nil
}

// requestLogger tags the request context with its request id and, when
// the token verifies, the user, then logs the request.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
		if id, err := s.verifier.FromRequest(req); err == nil {
			ctx = logging.WithUserID(ctx, id.Subject)
		}
		c.SetRequest(req.WithContext(ctx))

		err := next(c)
		s.reqLog(c).Info("http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

// reqLog returns the server logger with the request's correlation fields.
func (s *Server) reqLog(c echo.Context) *zap.Logger {
	return s.logger.With(logging.ContextFields(c.Request().Context())...)
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group(APIPrefix, auth.RequireAdmin(s.verifier, s.current, s.logger))
	api.GET("/documents", s.handleDocuments)
	api.GET("/list", s.handleList)
	api.GET("/stats", s.handleStats)

	destructive := s.destructiveLimiter()
	api.POST("/remove", s.handleRemove, destructive)
	api.POST("/clear", s.handleClear, destructive)
}

// destructiveLimiter rate limits per authenticated user, falling back to
// the client address.
func (s *Server) destructiveLimiter() echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(s.config.DestructiveRate),
		Burst:     s.config.DestructiveBurst,
		ExpiresIn: 5 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if id, ok := c.Get("user_id").(string); ok && id != "" {
				return id, nil
			}
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, _ error) error {
			s.logger.Warn("destructive request rate limited",
				zap.String("caller", identifier),
				zap.String("path", c.Path()))
			return c.JSON(http.StatusTooManyRequests, MessageResponse{Success: false, Message: "Too many requests"})
		},
	})
}

func (s *Server) current(ctx context.Context) settings.Settings {
	return settings.Current(ctx, s.settings, s.logger)
}

// Echo exposes the router so callers can mount extra routes.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
