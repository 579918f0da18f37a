// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes research sessions, session history, query
// analysis, and metrics over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pdiddy/toolscout/internal/history"
	"github.com/pdiddy/toolscout/internal/query"
	"github.com/pdiddy/toolscout/pkg/types"
)

// Runner runs one research session. *workflow.Machine implements it.
type Runner interface {
	Run(ctx context.Context, raw string) types.Report
}

// Sessions stores finished reports. *history.Store implements it.
type Sessions interface {
	Save(ctx context.Context, r types.Report) error
	Get(ctx context.Context, id string) (types.Report, error)
	List(ctx context.Context, opts history.ListOptions) ([]history.Summary, error)
}

// Server handles the HTTP API.
type Server struct {
	runner     Runner
	sessions   Sessions
	classifier *query.Classifier
	builder    *query.Builder
	logger     *zap.Logger
}

// New returns a Server. sessions may be nil, in which case reports are not
// stored and the session routes answer 503.
func New(runner Runner, sessions Sessions, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		runner:     runner,
		sessions:   sessions,
		classifier: query.Default(),
		builder:    query.DefaultBuilder(),
		logger:     logger.With(zap.String("component", "server")),
	}
}

// Handler returns a gin engine with every route registered.
func (s *Server) Handler() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests())
	s.RegisterRoutes(router)
	return router
}

// RegisterRoutes adds the API routes to router.
func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/research", s.handleResearch)
		v1.GET("/analyze", s.handleAnalyze)
		v1.GET("/sessions", s.handleListSessions)
		v1.GET("/sessions/:id", s.handleGetSession)
	}
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func errorJSON(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{
		"status": "error",
		"error":  msg,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

type researchRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleResearch(c *gin.Context) {
	var req researchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		errorJSON(c, http.StatusBadRequest, "missing required field: query")
		return
	}

	r := s.runner.Run(c.Request.Context(), req.Query)
	if s.sessions != nil {
		// The report is already final; a storage failure is logged only.
		if err := s.sessions.Save(context.WithoutCancel(c.Request.Context()), r); err != nil {
			s.logger.Error("saving session", zap.String("session_id", r.SessionID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handleAnalyze(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		errorJSON(c, http.StatusBadRequest, "missing required parameter: q")
		return
	}
	c.JSON(http.StatusOK, query.Analyze(s.classifier, s.builder, q))
}

func (s *Server) handleListSessions(c *gin.Context) {
	if s.sessions == nil {
		errorJSON(c, http.StatusServiceUnavailable, "session history is disabled")
		return
	}
	opts := history.ListOptions{
		Query: c.Query("q"),
		Stage: types.Stage(c.Query("stage")),
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errorJSON(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = n
	}

	list, err := s.sessions.List(c.Request.Context(), opts)
	if err != nil {
		s.logger.Error("listing sessions", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "listing sessions failed")
		return
	}
	if list == nil {
		list = []history.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": list,
	})
}

func (s *Server) handleGetSession(c *gin.Context) {
	if s.sessions == nil {
		errorJSON(c, http.StatusServiceUnavailable, "session history is disabled")
		return
	}
	r, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		errorJSON(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("reading session", zap.String("session_id", c.Param("id")), zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "reading session failed")
		return
	}
	c.JSON(http.StatusOK, r)
}
