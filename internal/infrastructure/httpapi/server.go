package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"MemeCurator/internal/domain"
	"MemeCurator/internal/logging"
	"MemeCurator/internal/usecase"
)

const healthBanner = "Meme Curator Bot is Running"

// CycleRunner is the slice of the curator the status API drives.
type CycleRunner interface {
	RunCycle(ctx context.Context) (usecase.CycleReport, error)
	Running() bool
	LastReport() (usecase.CycleReport, bool)
}

// Server exposes health, activity and manual-trigger endpoints.
type Server struct {
	addr     string
	runner   CycleRunner
	activity *logging.ActivityLog
	logger   *slog.Logger
	engine   *gin.Engine

	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewServer builds the router. The activity log may be nil.
func NewServer(addr string, runner CycleRunner, activity *logging.ActivityLog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		addr:     addr,
		runner:   runner,
		activity: activity,
		logger:   logger,
		baseCtx:  context.Background(),
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	router.GET("/healthz", s.health)
	router.GET("/", s.health)

	api := router.Group("/api")
	{
		api.GET("/activity", s.listActivity)
		api.GET("/last-cycle", s.lastCycle)
		api.POST("/cycle", s.triggerCycle)
	}
	s.engine = router
	return s
}

// Handler returns the router for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then shuts down and waits for cycles it started.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.wg.Wait()
	return err
}

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, healthBanner)
}

func (s *Server) listActivity(c *gin.Context) {
	entries := []logging.Entry{}
	if s.activity != nil {
		entries = s.activity.Snapshot()
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) lastCycle(c *gin.Context) {
	if s.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "curator not configured"})
		return
	}
	report, ok := s.runner.LastReport()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle has completed yet", "running": s.runner.Running()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": s.runner.Running(), "report": report})
}

func (s *Server) triggerCycle(c *gin.Context) {
	if s.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "curator not configured"})
		return
	}
	if s.runner.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": domain.ErrCycleInProgress.Error()})
		return
	}

	ctx := s.baseCtx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, err := s.runner.RunCycle(ctx)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrCycleInProgress):
			s.logger.Debug("manual trigger raced a running cycle")
		default:
			s.logger.Error("manual cycle failed", "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}
