// Package server exposes listing generation over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cgast/gigsmith/internal/logger"
	"github.com/cgast/gigsmith/internal/metrics"
	"github.com/cgast/gigsmith/pkg/events"
	"github.com/cgast/gigsmith/pkg/gig"
	"github.com/cgast/gigsmith/pkg/history"
	"github.com/cgast/gigsmith/pkg/spec"
)

// Server is the HTTP API.
type Server struct {
	engine    *gin.Engine
	svc       *gig.Service
	runs      history.Reader
	bus       *events.MemoryBus
	metrics   *metrics.Metrics
	logger    logger.Logger
	startTime time.Time
}

// Option configures a Server.
type Option func(*Server)

func WithRuns(r history.Reader) Option { return func(s *Server) { s.runs = r } }

// WithEvents serves the run events kept by bus.
func WithEvents(bus *events.MemoryBus) Option { return func(s *Server) { s.bus = bus } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Server) { s.metrics = m } }

func WithLogger(l logger.Logger) Option { return func(s *Server) { s.logger = l } }

// New creates the server and its routes.
func New(svc *gig.Service, opts ...Option) *Server {
	s := &Server{
		svc:       svc,
		logger:    logger.Nop(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api/v1")
	api.POST("/gigs", s.handleGenerate)
	api.GET("/graph", s.handleGraph)
	api.GET("/runs", s.handleRuns)
	api.GET("/runs/:id", s.handleRun)
	api.GET("/runs/:id/events", s.handleRunEvents)
	api.GET("/events", s.handleEventStream)

	s.engine = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("http api listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func errorJSON(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
		"tasks":  s.svc.Graph().Len(),
	})
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req gig.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	if err := s.svc.Validate(req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	resp := s.svc.Generate(c.Request.Context(), req)
	if resp.Error != "" {
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGraph(c *gin.Context) {
	plan, err := spec.GeneratePlan("gig", s.svc.Specs())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) handleRuns(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusOK, []history.Report{})
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errorJSON(c, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	reports, err := s.runs.List(limit)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	if reports == nil {
		reports = []history.Report{}
	}
	c.JSON(http.StatusOK, reports)
}

func (s *Server) handleRun(c *gin.Context) {
	if s.runs == nil {
		errorJSON(c, http.StatusNotFound, history.ErrNotFound)
		return
	}
	r, err := s.runs.Get(c.Param("id"))
	switch {
	case errors.Is(err, history.ErrNotFound):
		errorJSON(c, http.StatusNotFound, err)
	case err != nil:
		errorJSON(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, r)
	}
}

func (s *Server) handleRunEvents(c *gin.Context) {
	if s.bus == nil {
		c.JSON(http.StatusOK, []events.Event{})
		return
	}
	evs := s.bus.RunHistory(c.Param("id"))
	if evs == nil {
		evs = []events.Event{}
	}
	c.JSON(http.StatusOK, evs)
}

// handleEventStream sends the kept history and then live events as
// server-sent events until the client goes away. Each event is sent once.
func (s *Server) handleEventStream(c *gin.Context) {
	if s.bus == nil {
		errorJSON(c, http.StatusNotFound, errors.New("event stream disabled"))
		return
	}
	replay, ch := s.bus.SubscribeSince(time.Time{})
	defer s.bus.Unsubscribe(ch)

	for _, ev := range replay {
		c.SSEvent(string(ev.Type), ev)
	}
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		}
	})
}
