// Package server exposes the analysis service over HTTP.
package server

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/hed1ad/flowselect/internal/logstore"
	"github.com/hed1ad/flowselect/internal/metric"
	"github.com/hed1ad/flowselect/pkg/selection"
)

//go:embed web/index.html
var indexHTML []byte

// Analyzer runs one feature selection analysis.
type Analyzer interface {
	Analyze(ctx context.Context, trainPercentage float64) (selection.Result, error)
}

// Publisher accepts analysis records for best-effort storage.
type Publisher interface {
	Publish(rec logstore.Record) bool
}

// Config holds HTTP server settings.
type Config struct {
	Env            string
	AllowedOrigins []string
}

// Server routes HTTP requests to the analyzer.
type Server struct {
	router    *gin.Engine
	analyzer  Analyzer
	publisher Publisher
}

// New builds the router with logging, recovery and CORS middleware.
func New(cfg Config, analyzer Analyzer, publisher Publisher) *Server {
	if cfg.Env == "prod" || cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}

	s := &Server{
		router:    gin.New(),
		analyzer:  analyzer,
		publisher: publisher,
	}
	s.router.Use(cors.New(corsConfig), HTTPLogger(), gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/", s.index)
	s.router.GET("/health/self", Health)

	v1 := s.router.Group("/api/v1")
	v1.POST("/analyze/", s.analyze)
	v1.POST("/analyze", s.analyze)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting flowselect HTTP server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Application is up!!!"})
}

func (s *Server) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

// HTTPLogger logs and counts every request.
func HTTPLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		tags := metric.BuildTag(
			metric.TagPath, path,
			metric.TagMethod, c.Request.Method,
			metric.TagStatusCode, strconv.Itoa(status),
		)
		metric.Incr(metric.ApiRequestCount, tags)
		metric.Timing(metric.ApiRequestLatency, latency, tags)
		log.Info().Msgf("[access] [%s] %s %s %d %v", c.ClientIP(), c.Request.Method, c.Request.URL.Path, status, latency)
	}
}
