// Package api provides the HTTP and WebSocket transport for the Envoy
// playground. It uses the Echo framework to serve the REST actions and the
// WebSocket sessions that receive every published payload.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	_ "evalgo.org/playground/internal/api/docs"
	"evalgo.org/playground/internal/auth"
	"evalgo.org/playground/internal/config"
	"evalgo.org/playground/internal/connector"
	"evalgo.org/playground/internal/playground"
	"evalgo.org/playground/internal/publish"
)

// Server represents the playground API server.
type Server struct {
	echo       *echo.Echo
	config     *config.Config
	playground *playground.API
	connector  connector.Connector
	publisher  *publish.Publisher
	authMiddle *auth.Middleware
	logger     *zap.Logger
	upgrader   websocket.Upgrader

	// baseCtx outlives individual sessions; envelopes are dispatched on it.
	baseCtx  context.Context
	cancel   context.CancelFunc
	sessions sync.WaitGroup
	conns    sync.Map
}

// New creates a new API server instance.
func New(cfg *config.Config, pg *playground.API, conn connector.Connector, pub *publish.Publisher, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Server.Debug

	// Set custom error handler
	e.HTTPErrorHandler = HTTPErrorHandler

	ctx, cancel := context.WithCancel(context.Background())

	server := &Server{
		echo:       e,
		config:     cfg,
		playground: pg,
		connector:  conn,
		publisher:  pub,
		authMiddle: auth.NewMiddleware(cfg),
		logger:     logger,
		baseCtx:    ctx,
		cancel:     cancel,
	}
	server.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     server.checkOrigin,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	s.echo.Use(RequestLogger(s.logger))
	s.echo.Use(middleware.Recover())
	s.echo.Use(SecurityHeaders)

	if len(s.config.Security.AllowedOrigins) > 0 {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.config.Security.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	if s.config.Security.RateLimit > 0 {
		s.echo.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(s.config.Security.RateLimit),
		)))
	}

	// Proxy configurations are the largest bodies a client sends
	s.echo.Use(middleware.BodyLimit(fmt.Sprintf("%dK", s.config.Playground.MaxConfigLength/1024+64)))

	s.echo.Use(ValidateContentType)
	s.echo.Use(ValidateAcceptHeader)
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metadata", s.getMetadata)
	s.echo.GET("/metrics", s.getMetrics)

	// Swagger UI documentation
	s.echo.GET("/docs/*", echoSwagger.WrapHandler)

	s.echo.GET("/resources", s.dumpResources, s.authMiddle.RequireAuth)

	network := s.echo.Group("/network", s.authMiddle.RequireWrite)
	network.POST("/add", s.action(s.playground.NetworkAdd))
	network.POST("/edit", s.action(s.playground.NetworkEdit))
	network.POST("/delete", s.action(s.playground.NetworkDelete))

	proxy := s.echo.Group("/proxy", s.authMiddle.RequireWrite)
	proxy.POST("/add", s.action(s.playground.ProxyAdd))
	proxy.POST("/delete", s.action(s.playground.ProxyDelete))

	service := s.echo.Group("/service", s.authMiddle.RequireWrite)
	service.POST("/add", s.action(s.playground.ServiceAdd))
	service.POST("/delete", s.action(s.playground.ServiceDelete))

	s.echo.POST("/clear", s.clear, s.authMiddle.RequireWrite)

	s.echo.GET("/ws", s.handleWebSocket, s.authMiddle.RequireAuth)
	s.echo.GET("/ws/stats", s.handleWebSocketStats)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.logger.Info("starting playground API server",
		zap.String("address", addr),
		zap.Bool("tls", s.config.Server.TLSEnabled),
		zap.Bool("debug", s.config.Server.Debug))

	// Configure server timeouts
	s.echo.Server.ReadTimeout = s.config.Server.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.Server.WriteTimeout

	if s.config.Server.TLSEnabled {
		return s.echo.StartTLS(addr, s.config.Server.TLSCert, s.config.Server.TLSKey)
	}
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests, closes open sessions and waits for
// their queued envelopes to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down playground API server")

	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	s.conns.Range(func(_, v interface{}) bool {
		_ = v.(*websocket.Conn).Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("sessions did not drain: %w", ctx.Err())
	}
	s.cancel()

	s.logger.Info("server shutdown complete")
	return err
}
