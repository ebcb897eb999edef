// Package api serves the knowledge base over a JSON HTTP API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
	"github.com/custodia-labs/grantkb/internal/logger"
)

// DefaultMaxUploadBytes caps uploaded files unless overridden.
const DefaultMaxUploadBytes = 64 << 20

// ErrMissingKnowledgeService is returned when no knowledge service is given.
var ErrMissingKnowledgeService = errors.New("api: knowledge service is required")

// Server is the HTTP API server.
type Server struct {
	router    *gin.Engine
	documents *DocumentHandler
}

// Option configures a Server.
type Option func(*options)

type options struct {
	maxUpload int64
	cors      bool
}

// WithMaxUploadBytes sets the upload size cap. Zero disables it.
func WithMaxUploadBytes(n int64) Option {
	return func(o *options) {
		o.maxUpload = n
	}
}

// WithCORS allows requests from any origin.
func WithCORS() Option {
	return func(o *options) {
		o.cors = true
	}
}

// NewServer creates the API server and registers its routes.
func NewServer(knowledge driving.KnowledgeService, opts ...Option) (*Server, error) {
	if knowledge == nil {
		return nil, ErrMissingKnowledgeService
	}

	o := options{maxUpload: DefaultMaxUploadBytes}
	for _, opt := range opts {
		opt(&o)
	}

	if !logger.IsVerbose() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	if o.cors {
		router.Use(cors())
	}
	// Multipart parts beyond this are spooled to disk by net/http.
	router.MaxMultipartMemory = 8 << 20

	s := &Server{
		router:    router,
		documents: NewDocumentHandler(knowledge, o.maxUpload),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/documents", s.documents.List)
		v1.POST("/documents", s.documents.Upload)
		v1.DELETE("/documents", s.documents.Clear)
		v1.GET("/documents/:id", s.documents.Get)
		v1.DELETE("/documents/:id", s.documents.Delete)
		v1.GET("/documents/:id/chunks", s.documents.Chunks)
		v1.POST("/documents/:id/retry", s.documents.Retry)
		v1.POST("/query", s.documents.Query)
	}
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// requestLogger logs each request at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
