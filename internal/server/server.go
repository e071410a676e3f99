// Package server exposes score sheet analysis over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/scoreguard/internal/config"
	"github.com/KaramelBytes/scoreguard/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Server serves the analysis API.
type Server struct {
	cfg    *config.Global
	log    *logging.Logger
	engine *gin.Engine
}

// New builds a server with routes registered.
func New(cfg *config.Global, logger *logging.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Global()
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), logging.GinMiddleware(logger, "/api/ping"))
	engine.MaxMultipartMemory = int64(cfg.MaxUploadMB) << 20

	s := &Server{cfg: cfg, log: logger, engine: engine}
	api := engine.Group("/api")
	{
		api.GET("/ping", s.ping)
		api.POST("/analyze", s.analyze)
		api.POST("/analyze/export", s.export)
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run listens on the configured address until ctx is canceled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ServerAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting server", "addr", s.cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", s.cfg.ServerAddr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
