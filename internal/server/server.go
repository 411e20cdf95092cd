// Package server serves the documents of the latest optimization run over
// HTTP. Documents are immutable once published; a new run replaces them
// atomically.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/witness"
	"github.com/gnoswap-labs/witness/internal/export"
	"github.com/gnoswap-labs/witness/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

type snapshot struct {
	runID      string
	state      string
	iterations int
	exhausted  bool
	published  time.Time
	docs       export.Documents
}

type Server struct {
	logger  *zap.Logger
	metrics *metrics.Saturation
	current atomic.Pointer[snapshot]
	router  *gin.Engine
}

// New builds a server with no published run. m may be nil, in which case
// /metrics is not served. Every other path serves the embedded viewer.
func New(logger *zap.Logger, m *metrics.Saturation) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{logger: logger, metrics: m}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), cors())

	for _, name := range []string{export.GraphFile, export.TraceFile, export.NBestFile} {
		router.GET("/"+name, s.document(name))
	}
	router.GET("/healthz", s.health)
	router.NoRoute(viewer)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}
	return router
}

// Publish renders res and makes it the served run. Publishing does not
// count as a run in the metrics; the caller that ran the pipeline reports it.
func (s *Server) Publish(res *witness.Result) error {
	docs, err := res.Documents()
	if err != nil {
		return err
	}
	s.current.Store(&snapshot{
		runID:      res.RunID.String(),
		state:      res.State.String(),
		iterations: res.Iterations,
		exhausted:  res.Exhausted,
		published:  time.Now(),
		docs:       docs,
	})
	s.logger.Info("published run",
		zap.String("run_id", res.RunID.String()),
		zap.String("state", res.State.String()),
		zap.Int("candidates", len(res.Candidates)),
	)
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving documents", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) document(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := s.current.Load()
		if snap == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no run published"})
			return
		}
		doc, ok := snap.docs.Lookup(name)
		if !ok {
			c.Status(http.StatusNotFound)
			return
		}

		etag := `"` + doc.Digest.Encoded() + `"`
		c.Header("ETag", etag)
		c.Header("Cache-Control", "no-cache")
		if c.GetHeader("If-None-Match") == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Data(http.StatusOK, "application/json", doc.Body)
	}
}

func (s *Server) health(c *gin.Context) {
	snap := s.current.Load()
	if snap == nil {
		c.JSON(http.StatusOK, gin.H{"status": "starting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"run_id":     snap.runID,
		"state":      snap.state,
		"iterations": snap.iterations,
		"exhausted":  snap.exhausted,
		"published":  snap.published.UTC().Format(time.RFC3339),
	})
}

// cors allows any origin to read the documents.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "If-None-Match, Content-Type")
		c.Header("Access-Control-Expose-Headers", "ETag")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
