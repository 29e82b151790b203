// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/analyzer"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/client"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/types"
)

// Pipeline is what the server needs from the analysis stack.
type Pipeline interface {
	AnalyzeWith(ctx context.Context, path string, opts analyzer.AnalyzeOptions) []types.AnalysisResult
	Describe(ctx context.Context, f types.VisualFeatures) (string, error)
	Status(ctx context.Context) client.Status
}

// Config holds the HTTP settings
type Config struct {
	Addr           string
	JWTSecret      string // empty disables authentication
	MaxUploadBytes int64
	UploadDir      string // temporary upload location, os.TempDir() when empty
}

// Server is the HTTP front end
type Server struct {
	pipeline Pipeline
	cfg      Config
	logger   *slog.Logger
	engine   *gin.Engine
}

// New builds the router
func New(p Pipeline, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}

	s := &Server{pipeline: p, cfg: cfg, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	r.GET("/healthz", s.health)

	v1 := r.Group("/v1")
	if cfg.JWTSecret != "" {
		v1.Use(AuthRequired(cfg.JWTSecret))
	}
	v1.GET("/status", s.status)
	v1.POST("/analyze", s.analyze)
	v1.POST("/describe", s.describe)

	s.engine = r
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("JadeScribe API listening", "addr", s.cfg.Addr, "auth", s.cfg.JWTSecret != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server shutdown failed", "err", err)
			return err
		}
		s.logger.Info("Server stopped")
		return nil
	case err := <-serverErr:
		return err
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"remote_addr", c.ClientIP())
	}
}
