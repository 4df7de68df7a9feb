package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"docqa/internal/logger"
	"docqa/internal/metrics"
	"docqa/internal/usecase"
)

// multipartOverhead is the slack allowed on top of the file size for form boundaries and headers.
const multipartOverhead = 1 << 20

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// Server exposes the ingest and ask pipelines over HTTP.
type Server struct {
	cfg     Config
	ingest  *usecase.IngestUseCase
	ask     *usecase.AskUseCase
	schema  *usecase.SchemaUseCase
	log     logger.Logger
	metrics *metrics.Metrics
	router  *gin.Engine
}

func New(
	cfg Config,
	ingest *usecase.IngestUseCase,
	ask *usecase.AskUseCase,
	schema *usecase.SchemaUseCase,
	log logger.Logger,
	m *metrics.Metrics,
) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Default()
	}
	s := &Server{
		cfg:     cfg,
		ingest:  ingest,
		ask:     ask,
		schema:  schema,
		log:     log,
		metrics: m,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestMiddleware(s.log, s.metrics))
	r.Use(errorMiddleware(s.log))

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	upload := r.Group("/")
	if s.cfg.MaxUploadBytes > 0 {
		upload.Use(bodySizeLimiter(s.cfg.MaxUploadBytes + multipartOverhead))
	}
	upload.POST("/ingest", s.handleIngest)

	r.POST("/ask", s.handleAsk)
	r.POST("/create_schema", s.handleCreateSchema)
	r.GET("/documents", s.handleListDocuments)
	r.DELETE("/documents/:id", s.handleDeleteDocument)
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("Starting HTTP server", "address", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		s.log.Debug("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		s.log.Info("Server shutdown completed")
		return nil
	})
	return g.Wait()
}
