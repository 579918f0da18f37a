// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow drives one research session through its stages:
// discovering candidate tools, researching each, analyzing them, and
// recommending one. Session-level failures end in a failed Report, never
// in a returned error.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/toolscout/internal/failure"
	"github.com/pdiddy/toolscout/internal/llm"
	"github.com/pdiddy/toolscout/internal/metrics"
	"github.com/pdiddy/toolscout/internal/query"
	"github.com/pdiddy/toolscout/internal/retry"
	"github.com/pdiddy/toolscout/internal/search"
	"github.com/pdiddy/toolscout/pkg/types"
)

// Searcher is the hybrid search used by the discovery and research
// stages. *search.Strategy implements it.
type Searcher interface {
	Run(ctx context.Context, stage string, queries []types.SearchQuery) (search.Output, error)
	Scrape(ctx context.Context, stage, url string) (string, []types.ErrorRecord, error)
}

// Deps are the collaborators of a Machine.
type Deps struct {
	Classifier *query.Classifier
	Builder    *query.Builder
	Search     Searcher
	LLM        llm.Completer
	Retry      retry.Policy

	// Progress receives one human-readable line per stage event. Nil
	// discards them.
	Progress io.Writer
}

// Machine runs research sessions. It holds no per-session state; each
// call to Run owns its session exclusively, so one Machine may serve
// concurrent sessions.
type Machine struct {
	deps   Deps
	cfg    types.WorkflowConfig
	logger *zap.Logger

	now   func() time.Time
	newID func() string
}

// New returns a Machine. Zero config values fall back to the defaults.
func New(deps Deps, cfg types.WorkflowConfig, logger *zap.Logger) *Machine {
	def := types.DefaultConfig().Workflow
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = def.MaxCandidates
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = def.SessionTimeout
	}
	if cfg.ScrapeChars <= 0 {
		cfg.ScrapeChars = def.ScrapeChars
	}
	if deps.Classifier == nil {
		deps.Classifier = query.Default()
	}
	if deps.Builder == nil {
		deps.Builder = query.DefaultBuilder()
	}
	if deps.Progress == nil {
		deps.Progress = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Retry.Logger == nil {
		deps.Retry.Logger = logger
	}
	return &Machine{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// step is one stage of the pipeline.
type step struct {
	stage types.Stage
	run   func(context.Context, *session) error
}

// Run executes one session for raw and returns its report. The session
// is bounded by the configured session timeout and by ctx.
func (m *Machine) Run(ctx context.Context, raw string) types.Report {
	s := newSession(m.newID(), raw, m.now(), m.logger)
	metrics.SessionsStarted.Inc()
	s.logger.Info("session started", zap.String("query", raw))

	ctx, cancel := context.WithTimeout(ctx, m.cfg.SessionTimeout)
	defer cancel()

	pipeline := []step{
		{types.StageDiscovering, m.discover},
		{types.StageResearching, m.research},
		{types.StageAnalyzing, m.analyze},
		{types.StageRecommending, m.recommend},
	}
	for _, st := range pipeline {
		if err := s.advance(st.stage); err != nil {
			return m.finish(s, err)
		}
		m.progress("%s\n", st.stage)
		err := st.run(ctx, s)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			return m.finish(s, m.sessionError(ctx, s, err))
		}
	}
	if err := s.advance(types.StageCompleted); err != nil {
		return m.finish(s, err)
	}
	return m.finish(s, nil)
}

// sessionError turns the end of the session context into a
// SessionTimeout; other errors pass through.
func (m *Machine) sessionError(ctx context.Context, s *session, err error) error {
	if ctx.Err() == nil {
		return err
	}
	var we *failure.WorkflowError
	if errors.As(err, &we) {
		return err
	}
	msg := fmt.Sprintf("session exceeded %s", m.cfg.SessionTimeout)
	if errors.Is(ctx.Err(), context.Canceled) {
		msg = "session cancelled"
	}
	return &failure.WorkflowError{Kind: types.KindSessionTimeout, Stage: s.stage, Message: msg, Err: err}
}

// finish moves the session to its terminal stage and builds the report.
func (m *Machine) finish(s *session, err error) types.Report {
	if err != nil {
		s.failedIn = s.stage
		s.failureKind = failure.KindOf(err)
		s.record(types.ErrorRecord{
			Stage:   string(s.failedIn),
			Kind:    s.failureKind,
			Message: err.Error(),
		})
		if !s.stage.Terminal() {
			metrics.StageTransitions.WithLabelValues(string(s.stage), string(types.StageFailed)).Inc()
		}
		s.stage = types.StageFailed
		s.logger.Warn("session failed",
			zap.String("stage", string(s.failedIn)),
			zap.String("kind", string(s.failureKind)),
			zap.Error(err),
		)
		m.progress("failed in %s: %s\n", s.failedIn, s.failureKind)
	} else {
		s.logger.Info("session completed")
		m.progress("completed\n")
	}

	finished := m.now()
	metrics.SessionsFinished.WithLabelValues(string(s.stage), string(s.failureKind)).Inc()
	metrics.SessionDuration.Observe(finished.Sub(s.startedAt).Seconds())
	return s.report(finished)
}

func (m *Machine) progress(format string, args ...any) {
	fmt.Fprintf(m.deps.Progress, format, args...)
}
