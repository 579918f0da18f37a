// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/toolscout/internal/metrics"
	"github.com/pdiddy/toolscout/pkg/types"
)

// transitions lists the legal successors of each non-terminal stage.
// failed is reachable from every non-terminal stage.
var transitions = map[types.Stage][]types.Stage{
	types.StageStarted:      {types.StageDiscovering, types.StageFailed},
	types.StageDiscovering:  {types.StageResearching, types.StageFailed},
	types.StageResearching:  {types.StageAnalyzing, types.StageFailed},
	types.StageAnalyzing:    {types.StageRecommending, types.StageFailed},
	types.StageRecommending: {types.StageCompleted, types.StageFailed},
}

// CanTransition reports whether from → to is a legal stage change.
func CanTransition(from, to types.Stage) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// researched is what the research stage learned about one candidate.
type researched struct {
	ok      bool
	content string
}

// session is the state of one research run. Only the append-only error
// log and the analyses map are touched from worker goroutines; both are
// guarded by mu.
type session struct {
	id     string
	query  string
	intent types.QueryIntent
	stage  types.Stage

	queries    []types.SearchQuery
	candidates []types.ToolCandidate
	research   []researched

	failedIn    types.Stage
	failureKind types.ErrorKind

	recommendation *types.Recommendation

	mu       sync.Mutex
	errors   []types.ErrorRecord
	analyses map[string]types.ToolAnalysis

	startedAt time.Time
	logger    *zap.Logger
}

func newSession(id, query string, now time.Time, logger *zap.Logger) *session {
	return &session{
		id:        id,
		query:     query,
		stage:     types.StageStarted,
		analyses:  make(map[string]types.ToolAnalysis),
		startedAt: now,
		logger:    logger.With(zap.String("session_id", id)),
	}
}

// advance moves the session to stage to. An illegal transition is a
// programming error and is reported as such.
func (s *session) advance(to types.Stage) error {
	if !CanTransition(s.stage, to) {
		return fmt.Errorf("illegal stage transition %s -> %s", s.stage, to)
	}
	metrics.StageTransitions.WithLabelValues(string(s.stage), string(to)).Inc()
	s.logger.Info("stage transition",
		zap.String("stage", string(to)),
		zap.String("from", string(s.stage)),
	)
	s.stage = to
	return nil
}

// record appends records to the error log. Safe for concurrent use.
func (s *session) record(recs ...types.ErrorRecord) {
	if len(recs) == 0 {
		return
	}
	s.mu.Lock()
	s.errors = append(s.errors, recs...)
	s.mu.Unlock()
}

// commit stores the analysis for one candidate. Safe for concurrent use.
func (s *session) commit(a types.ToolAnalysis) {
	s.mu.Lock()
	s.analyses[a.Candidate.Key()] = a
	s.mu.Unlock()
}

// survivors returns the indexes of candidates whose research succeeded,
// in discovery order.
func (s *session) survivors() []int {
	var idx []int
	for i, r := range s.research {
		if r.ok {
			idx = append(idx, i)
		}
	}
	return idx
}

// orderedAnalyses returns committed analyses in candidate order.
func (s *session) orderedAnalyses() []types.ToolAnalysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.ToolAnalysis
	for _, c := range s.candidates {
		if a, ok := s.analyses[c.Key()]; ok {
			out = append(out, a)
		}
	}
	return out
}

func (s *session) report(finished time.Time) types.Report {
	analyses := s.orderedAnalyses()
	s.mu.Lock()
	errs := append([]types.ErrorRecord(nil), s.errors...)
	s.mu.Unlock()

	return types.Report{
		SessionID:      s.id,
		Query:          s.query,
		Intent:         s.intent,
		Stage:          s.stage,
		FailedIn:       s.failedIn,
		FailureKind:    s.failureKind,
		Queries:        s.queries,
		Candidates:     append([]types.ToolCandidate(nil), s.candidates...),
		Analyses:       analyses,
		Recommendation: s.recommendation,
		Errors:         errs,
		StartedAt:      s.startedAt,
		FinishedAt:     finished,
	}
}
