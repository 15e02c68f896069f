// Package httpserver provides the gin HTTP server with the middleware chain
// and graceful shutdown.
package httpserver

import (
	"context"
	"errors"
	"net"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	apierrors "github.com/kart-io/ragchat/pkg/errors"
	"github.com/kart-io/ragchat/pkg/infra/middleware"
	options "github.com/kart-io/ragchat/pkg/options/http"
	"github.com/kart-io/ragchat/pkg/utils/response"
)

// Server is the HTTP server implementation.
type Server struct {
	opts   *options.Options
	engine *gin.Engine

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener

	// serveErr receives the error of Serve when it stops for any reason
	// other than Shutdown.
	serveErr chan error
}

// NewServer creates a new HTTP server with the given options. The
// middleware chain is applied before any route is registered so that every
// route group inherits it.
func NewServer(opts *options.Options) *Server {
	if opts == nil {
		opts = options.NewOptions()
	}

	gin.SetMode(opts.Mode)
	engine := gin.New()
	engine.Use(middleware.Chain(opts.Middleware)...)
	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})

	return &Server{
		opts:   opts,
		engine: engine,
	}
}

// Name returns the server name.
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound address once started, or the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Start binds the listener and serves in the background.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	serveErr := make(chan error, 1)

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.serveErr = serveErr
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("HTTP server stopped unexpectedly", "error", err.Error())
			serveErr <- err
		}
	}()

	logger.Infow("HTTP server started", "addr", ln.Addr().String(), "mode", s.opts.Mode)
	return nil
}

// Run starts the server and blocks until ctx is done, then shuts down
// within the configured shutdown timeout. It returns early with the serve
// error if the server stops on its own.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	serveErr := s.serveErr
	s.mu.Unlock()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	logger.Info("Shutting down HTTP server...")
	return srv.Shutdown(ctx)
}
