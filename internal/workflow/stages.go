// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/toolscout/internal/failure"
	"github.com/pdiddy/toolscout/internal/llm"
	"github.com/pdiddy/toolscout/internal/retry"
	"github.com/pdiddy/toolscout/pkg/types"
)

// --- discovering ---

// discover classifies the query, builds search queries and turns the
// search results into candidates. Explicit targets skip the search.
func (m *Machine) discover(ctx context.Context, s *session) error {
	intent, err := m.deps.Classifier.SafeClassify(s.query)
	if err != nil {
		return err
	}
	s.intent = intent

	queries, err := m.deps.Builder.Build(intent)
	if err != nil {
		return err
	}
	s.queries = queries

	if intent.HasExplicitTargets() {
		for _, name := range intent.ExplicitTargets() {
			s.addCandidate(types.ToolCandidate{Name: name, Confidence: 1})
		}
		s.candidates = selectTop(s.candidates, m.cfg.MaxCandidates)
		m.progress("  using %d named tools: %s\n", len(s.candidates), strings.Join(candidateNames(s.candidates), ", "))
		return nil
	}

	stage := string(types.StageDiscovering)
	out, err := m.deps.Search.Run(ctx, stage, queries)
	s.record(out.Errors...)
	if err != nil {
		return err
	}
	m.progress("  %d search results from %d queries\n", len(out.Results), len(queries))
	if len(out.Results) == 0 {
		return &failure.WorkflowError{Kind: types.KindNoCandidatesFound, Stage: types.StageDiscovering, Message: "discovery search returned no results"}
	}

	exclude := ""
	if intent.Type == types.TypeAlternatives && len(intent.TargetEntities) > 0 {
		exclude = intent.TargetEntities[0]
	}
	req := llm.ExtractionRequest(s.query, exclude, out.Results)
	tools, rec, err := completeJSON(ctx, m, s, stage, s.query, req, llm.ValidateExtraction)
	if err != nil {
		s.record(*rec)
		if failure.Fatal(err) || ctx.Err() != nil {
			return err
		}
		return &failure.WorkflowError{Kind: types.KindNoCandidatesFound, Stage: types.StageDiscovering, Message: "candidate extraction failed", Err: err}
	}

	var found []types.ToolCandidate
	for _, t := range tools.Tools {
		if exclude != "" && types.NormalizeToolName(t.Name) == types.NormalizeToolName(exclude) {
			continue
		}
		c := types.ToolCandidate{Name: t.Name, Confidence: t.Confidence}
		for _, i := range t.Sources {
			if i >= 0 && i < len(out.Results) {
				c.AddSourceURL(out.Results[i].URL)
			}
		}
		found = append(found, c)
	}
	for _, c := range selectTop(found, m.cfg.MaxCandidates) {
		s.addCandidate(c)
	}
	if len(s.candidates) == 0 {
		return &failure.WorkflowError{Kind: types.KindNoCandidatesFound, Stage: types.StageDiscovering, Message: "no tools named in search results"}
	}
	m.progress("  %d candidates: %s\n", len(s.candidates), strings.Join(candidateNames(s.candidates), ", "))
	return nil
}

// addCandidate appends c unless a candidate with the same normalized name
// exists, in which case source URLs are merged and the higher confidence
// kept.
func (s *session) addCandidate(c types.ToolCandidate) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return
	}
	for i := range s.candidates {
		if s.candidates[i].Key() == c.Key() {
			for _, u := range c.SourceURLs {
				s.candidates[i].AddSourceURL(u)
			}
			s.candidates[i].Confidence = max(s.candidates[i].Confidence, c.Confidence)
			return
		}
	}
	s.candidates = append(s.candidates, c)
}

// selectTop keeps the n most confident candidates, ties going to the
// earlier one, and returns them in their original order.
func selectTop(cs []types.ToolCandidate, n int) []types.ToolCandidate {
	if len(cs) <= n {
		return cs
	}
	idx := make([]int, len(cs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return cs[idx[a]].Confidence > cs[idx[b]].Confidence
	})
	idx = idx[:n]
	sort.Ints(idx)
	out := make([]types.ToolCandidate, n)
	for i, j := range idx {
		out[i] = cs[j]
	}
	return out
}

func candidateNames(cs []types.ToolCandidate) []string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name
	}
	return names
}

// --- researching ---

// research searches for and scrapes each candidate's site with bounded
// concurrency. A failing candidate is recorded and dropped; the stage
// fails only when every candidate failed.
func (m *Machine) research(ctx context.Context, s *session) error {
	s.research = make([]researched, len(s.candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.MaxConcurrency)
	for i := range s.candidates {
		g.Go(func() error {
			// Each goroutine writes only its own index.
			s.research[i] = m.researchOne(gctx, s, &s.candidates[i])
			return nil
		})
	}
	g.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	ok := len(s.survivors())
	m.progress("  researched %d of %d candidates\n", ok, len(s.candidates))
	if ok == 0 {
		return &failure.WorkflowError{
			Kind:    types.KindAllCandidatesFailed,
			Stage:   types.StageResearching,
			Message: fmt.Sprintf("research failed for all %d candidates", len(s.candidates)),
		}
	}
	return nil
}

func (m *Machine) researchOne(ctx context.Context, s *session, c *types.ToolCandidate) researched {
	stage := string(types.StageResearching)
	logger := s.logger.With(zap.String("stage", stage), zap.String("candidate", c.Name))

	q := types.SearchQuery{Text: c.Name + " official site", SourceHint: types.HintPrimary}
	out, err := m.deps.Search.Run(ctx, stage, []types.SearchQuery{q})
	s.record(out.Errors...)
	if err != nil {
		logger.Warn("candidate research failed", zap.Error(err))
		return researched{}
	}

	var best *types.SearchResult
	for i := range out.Results {
		if out.Results[i].URL != "" {
			best = &out.Results[i]
			break
		}
	}
	if best == nil {
		if len(c.SourceURLs) == 0 {
			s.record(types.ErrorRecord{Stage: stage, Kind: types.KindNotFound, Message: "no page found for candidate", Subject: c.Name})
			logger.Warn("no page found for candidate")
			return researched{}
		}
		best = &types.SearchResult{URL: c.SourceURLs[0]}
	}

	content, recs, err := m.deps.Search.Scrape(ctx, stage, best.URL)
	if err != nil && (failure.Fatal(err) || ctx.Err() != nil) {
		s.record(recs...)
		logger.Warn("candidate scrape failed", zap.String("url", best.URL), zap.Error(err))
		return researched{}
	}
	if strings.TrimSpace(content) == "" {
		content = best.Content
		if strings.TrimSpace(content) == "" {
			content = best.Snippet
		}
		if strings.TrimSpace(content) == "" {
			s.record(recs...)
			if err == nil {
				s.record(types.ErrorRecord{Stage: stage, Kind: types.KindNotFound, Message: "page has no content", Subject: best.URL})
			}
			logger.Warn("no content for candidate", zap.String("url", best.URL), zap.Error(err))
			return researched{}
		}
		// The page is still described by the search result, so scrape
		// failures here are recovered.
		for i := range recs {
			recs[i].Recovered = true
		}
	}
	s.record(recs...)

	c.AddSourceURL(best.URL)
	c.Website = best.URL
	return researched{ok: true, content: content}
}

// --- analyzing ---

// analyze extracts a ToolAnalysis for every surviving candidate. Output
// that stays malformed after one retry, or a call that keeps failing,
// yields a degraded analysis with pricing unknown. Only an unauthorized
// completion service or the end of the session stops the stage.
func (m *Machine) analyze(ctx context.Context, s *session) error {
	stage := string(types.StageAnalyzing)

	var (
		mu    sync.Mutex
		fatal error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.MaxConcurrency)
	for _, i := range s.survivors() {
		c := s.candidates[i]
		content := s.research[i].content
		g.Go(func() error {
			req := llm.AnalysisRequest(c.Name, content, m.cfg.ScrapeChars)
			a, rec, err := completeJSON(gctx, m, s, stage, c.Name, req, llm.ValidateAnalysis)
			if err == nil {
				s.commit(a.ToToolAnalysis(c))
				return nil
			}
			switch {
			case failure.Fatal(err):
				s.record(*rec)
				mu.Lock()
				if fatal == nil {
					fatal = err
				}
				mu.Unlock()
				return err
			case gctx.Err() != nil:
				// Either the session ended or a sibling hit a fatal error;
				// only the former is worth a record.
				if ctx.Err() != nil {
					s.record(*rec)
				}
				return nil
			}
			rec.Recovered = true
			s.record(*rec)
			s.commit(types.ToolAnalysis{Candidate: c, PricingModel: types.PricingUnknown, Degraded: true})
			return nil
		})
	}
	g.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if fatal != nil {
		return fatal
	}
	m.progress("  analyzed %d candidates\n", len(s.survivors()))
	return nil
}

// --- recommending ---

// recommend asks for a ranking of all analyses. If the call fails for any
// reason other than the end of the session, the ranking falls back to
// confidence then name.
func (m *Machine) recommend(ctx context.Context, s *session) error {
	stage := string(types.StageRecommending)
	analyses := s.orderedAnalyses()

	names := make([]string, len(analyses))
	for i, a := range analyses {
		names[i] = a.Candidate.Name
	}
	req := llm.RecommendationRequest(s.query, analyses)
	rec, errRec, err := completeJSON(ctx, m, s, stage, s.query, req, llm.RankingValidator(names))
	if err == nil {
		s.recommendation = &types.Recommendation{Text: rec.Text, Ranking: rec.Ranking}
		return nil
	}
	if ctx.Err() != nil {
		s.record(*errRec)
		return err
	}

	errRec.Recovered = true
	s.record(*errRec)
	s.recommendation = degradedRecommendation(analyses)
	m.progress("  recommendation degraded to rule-based ranking\n")
	return nil
}

// degradedRecommendation ranks by confidence, highest first, then by
// normalized name.
func degradedRecommendation(analyses []types.ToolAnalysis) *types.Recommendation {
	ranked := append([]types.ToolAnalysis(nil), analyses...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ci, cj := ranked[i].Candidate, ranked[j].Candidate
		if ci.Confidence != cj.Confidence {
			return ci.Confidence > cj.Confidence
		}
		return ci.Key() < cj.Key()
	})
	names := make([]string, len(ranked))
	for i, a := range ranked {
		names[i] = a.Candidate.Name
	}
	text := "No tools were analyzed."
	if len(names) > 0 {
		text = fmt.Sprintf("Ranked by discovery confidence: %s. %s is the strongest match.", strings.Join(names, ", "), names[0])
	}
	return &types.Recommendation{Text: text, Ranking: names, Degraded: true}
}

// --- completion calls ---

// completeJSON runs a schema-constrained completion under the retry
// policy. Invalid output is not retryable there, so it gets exactly one
// more round here. On failure the returned record describes the last
// attempt; on success it is nil.
func completeJSON[T any](ctx context.Context, m *Machine, s *session, stage, subject string, req llm.Request, validate func(*T) error) (T, *types.ErrorRecord, error) {
	op := retry.Op{Stage: stage, Name: "llm." + req.Purpose, Subject: subject}
	call := func(ctx context.Context) (T, error) {
		return llm.CompleteJSON(ctx, m.deps.LLM, req, validate)
	}

	v, out, err := retry.Do(ctx, m.deps.Retry, op, call)
	if err == nil {
		return v, nil, nil
	}
	if failure.KindOf(err) != types.KindInvalidOutput || ctx.Err() != nil {
		return v, out.Record, err
	}

	s.logger.Warn("malformed completion output, retrying once",
		zap.String("stage", stage),
		zap.String("purpose", req.Purpose),
		zap.Error(err),
	)
	v, again, err := retry.Do(ctx, m.deps.Retry, op, call)
	if err == nil {
		return v, nil, nil
	}
	again.Record.Retried += out.Retries + 1
	return v, again.Record, err
}
