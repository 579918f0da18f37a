// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pdiddy/toolscout/internal/failure"
	"github.com/pdiddy/toolscout/internal/llm"
	"github.com/pdiddy/toolscout/internal/retry"
	"github.com/pdiddy/toolscout/internal/search"
	"github.com/pdiddy/toolscout/pkg/types"
)

// --- fakes ---

type fakeSearch struct {
	discovery    []types.SearchResult
	discoveryErr error

	// research is keyed by query text.
	research    map[string]search.Output
	researchErr map[string]error
	pages       map[string]string
	scrapeErr   map[string]error

	mu   sync.Mutex
	runs []string
}

func (f *fakeSearch) Run(_ context.Context, stage string, queries []types.SearchQuery) (search.Output, error) {
	f.mu.Lock()
	for _, q := range queries {
		f.runs = append(f.runs, stage+":"+q.Text)
	}
	f.mu.Unlock()
	if stage == string(types.StageDiscovering) {
		return search.Output{Results: f.discovery}, f.discoveryErr
	}
	q := queries[0].Text
	return f.research[q], f.researchErr[q]
}

func (f *fakeSearch) Scrape(_ context.Context, stage, url string) (string, []types.ErrorRecord, error) {
	if err := f.scrapeErr[url]; err != nil {
		rec := types.ErrorRecord{Stage: stage, Kind: failure.KindOf(err), Message: err.Error(), Subject: url}
		return "", []types.ErrorRecord{rec}, err
	}
	return f.pages[url], nil, nil
}

func (f *fakeSearch) stageRuns(stage types.Stage) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.runs {
		if strings.HasPrefix(r, string(stage)+":") {
			out = append(out, r)
		}
	}
	return out
}

// stubLLM answers by request purpose. analysis receives the tool name and
// how many times that tool has been analyzed before.
type stubLLM struct {
	extraction     string
	analysis       func(ctx context.Context, tool string, n int) (string, error)
	recommendation func(ctx context.Context) (string, error)

	mu    sync.Mutex
	calls map[string]int
}

func (s *stubLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	key := req.Purpose
	if req.Purpose == llm.PurposeAnalysis {
		key += ":" + toolName(req.User)
	}
	n := s.calls[key]
	s.calls[key]++
	s.mu.Unlock()

	switch req.Purpose {
	case llm.PurposeExtraction:
		return s.extraction, nil
	case llm.PurposeAnalysis:
		if s.analysis == nil {
			return analysisJSON("free"), nil
		}
		return s.analysis(ctx, toolName(req.User), n)
	default:
		return s.recommendation(ctx)
	}
}

func (s *stubLLM) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func toolName(user string) string {
	line, _, _ := strings.Cut(user, "\n")
	return strings.TrimPrefix(line, "Tool: ")
}

func analysisJSON(pricing string) string {
	return `{"pricing_model":"` + pricing + `","is_open_source":true,"tech_stack":["python"],` +
		`"description":"A tool.","api_available":null,"language_support":["python"],"integration_capabilities":["github"]}`
}

func extractionJSON(t *testing.T, tools ...llm.ExtractedTool) string {
	t.Helper()
	b, err := json.Marshal(llm.ExtractedTools{Tools: tools})
	require.NoError(t, err)
	return string(b)
}

func rankingJSON(text string, ranking ...string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		b, _ := json.Marshal(llm.Recommendation{Ranking: ranking, Text: text})
		return string(b), nil
	}
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func newMachine(f *fakeSearch, l *stubLLM, cfg types.WorkflowConfig) *Machine {
	m := New(Deps{Search: f, LLM: l, Retry: fastRetry()}, cfg, nil)
	m.newID = func() string { return "session-1" }
	return m
}

// threeTools is a discovery for "machine learning platforms" that yields
// candidates alpha, beta and gamma.
func threeTools(t *testing.T) (*fakeSearch, *stubLLM) {
	f := &fakeSearch{
		discovery: []types.SearchResult{
			{URL: "https://list.example/1", Title: "Top ML platforms", Snippet: "alpha, beta"},
			{URL: "https://list.example/2", Title: "More platforms", Snippet: "gamma"},
		},
		research: map[string]search.Output{
			"alpha official site": {Results: []types.SearchResult{{URL: "https://alpha.dev", Snippet: "alpha snippet"}}},
			"beta official site":  {Results: []types.SearchResult{{URL: "https://beta.dev", Snippet: "beta snippet"}}},
			"gamma official site": {Results: []types.SearchResult{{URL: "https://gamma.dev", Snippet: "gamma snippet"}}},
		},
		researchErr: map[string]error{},
		pages: map[string]string{
			"https://alpha.dev": "alpha page",
			"https://beta.dev":  "beta page",
			"https://gamma.dev": "gamma page",
		},
	}
	l := &stubLLM{
		extraction: extractionJSON(t,
			llm.ExtractedTool{Name: "alpha", Confidence: 0.9, Sources: []int{0}},
			llm.ExtractedTool{Name: "beta", Confidence: 0.8, Sources: []int{0}},
			llm.ExtractedTool{Name: "gamma", Confidence: 0.95, Sources: []int{1}},
		),
		recommendation: rankingJSON("Use gamma.", "gamma", "alpha", "beta"),
	}
	return f, l
}

// --- transitions ---

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(types.StageStarted, types.StageDiscovering))
	assert.True(t, CanTransition(types.StageRecommending, types.StageCompleted))
	assert.True(t, CanTransition(types.StageResearching, types.StageFailed))
	assert.False(t, CanTransition(types.StageStarted, types.StageAnalyzing))
	assert.False(t, CanTransition(types.StageAnalyzing, types.StageResearching))
	assert.False(t, CanTransition(types.StageCompleted, types.StageFailed))
	assert.False(t, CanTransition(types.StageFailed, types.StageDiscovering))
}

// --- sessions ---

func TestRunCompleted(t *testing.T) {
	defer goleak.VerifyNone(t)

	f, l := threeTools(t)
	var progress bytes.Buffer
	m := New(Deps{Search: f, LLM: l, Retry: fastRetry(), Progress: &progress}, types.WorkflowConfig{}, nil)

	r := m.Run(context.Background(), "machine learning platforms")

	assert.Equal(t, types.StageCompleted, r.Stage)
	assert.Empty(t, r.FailedIn)
	assert.NotEmpty(t, r.SessionID)
	assert.Equal(t, types.TypeGeneral, r.Intent.Type)
	assert.NotEmpty(t, r.Queries)
	require.Len(t, r.Candidates, 3)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, candidateNames(r.Candidates))
	assert.Equal(t, "https://alpha.dev", r.Candidates[0].Website)
	assert.Equal(t, []string{"https://alpha.dev", "https://list.example/1"}, r.Candidates[0].SourceURLs)

	require.Len(t, r.Analyses, 3)
	for _, a := range r.Analyses {
		assert.Equal(t, types.PricingFree, a.PricingModel)
		assert.False(t, a.Degraded)
	}
	require.NotNil(t, r.Recommendation)
	assert.Equal(t, []string{"gamma", "alpha", "beta"}, r.Recommendation.Ranking)
	assert.False(t, r.Recommendation.Degraded)
	assert.Empty(t, r.Errors)
	assert.False(t, r.FinishedAt.Before(r.StartedAt))
	assert.Contains(t, progress.String(), "completed")
}

func TestRunNoSearchResults(t *testing.T) {
	f := &fakeSearch{}
	l := &stubLLM{}
	r := newMachine(f, l, types.WorkflowConfig{}).Run(context.Background(), "machine learning platforms")

	assert.Equal(t, types.StageFailed, r.Stage)
	assert.Equal(t, types.StageDiscovering, r.FailedIn)
	assert.Equal(t, types.KindNoCandidatesFound, r.FailureKind)
	assert.Empty(t, r.Candidates)
	assert.Empty(t, r.Analyses)
	assert.Nil(t, r.Recommendation)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, string(types.StageDiscovering), r.Errors[0].Stage)
	assert.Equal(t, types.KindNoCandidatesFound, r.Errors[0].Kind)
	assert.Zero(t, l.count(llm.PurposeExtraction))
}

func TestRunUnauthorizedCandidateIsDropped(t *testing.T) {
	f, l := threeTools(t)
	rec := types.ErrorRecord{Stage: string(types.StageResearching), Kind: types.KindUnauthorized, Message: "firecrawl: unauthorized", Subject: "beta official site"}
	f.research["beta official site"] = search.Output{Errors: []types.ErrorRecord{rec}}
	f.researchErr["beta official site"] = failure.Provider("firecrawl", types.KindUnauthorized, "HTTP 401", nil)
	l.recommendation = rankingJSON("Use gamma.", "gamma", "alpha")

	r := newMachine(f, l, types.WorkflowConfig{}).Run(context.Background(), "machine learning platforms")

	assert.Equal(t, types.StageCompleted, r.Stage)
	require.Len(t, r.Analyses, 2)
	assert.Equal(t, "alpha", r.Analyses[0].Candidate.Name)
	assert.Equal(t, "gamma", r.Analyses[1].Candidate.Name)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, rec, r.Errors[0])
	assert.Equal(t, []string{"gamma", "alpha"}, r.Recommendation.Ranking)
}

func TestRunNotFoundCandidates(t *testing.T) {
	f, l := threeTools(t)
	f.research = map[string]search.Output{}
	l.extraction = extractionJSON(t,
		llm.ExtractedTool{Name: "alpha", Confidence: 0.9},
		llm.ExtractedTool{Name: "beta", Confidence: 0.8},
	)

	r := newMachine(f, l, types.WorkflowConfig{}).Run(context.Background(), "machine learning platforms")

	assert.Equal(t, types.StageFailed, r.Stage)
	assert.Equal(t, types.StageResearching, r.FailedIn)
	assert.Equal(t, types.KindAllCandidatesFailed, r.FailureKind)
	require.Len(t, r.Errors, 3)
	kinds := map[types.ErrorKind]int{}
	for _, e := range r.Errors {
		kinds[e.Kind]++
	}
	assert.Equal(t, 2, kinds[types.KindNotFound])
	assert.Equal(t, 1, kinds[types.KindAllCandidatesFailed])
}

func TestRunScrapeFailure(t *testing.T) {
	scrapeErr := failure.Provider("firecrawl", types.KindInvalidResponse, "malformed body", nil)

	t.Run("no substitute content drops the candidate", func(t *testing.T) {
		f, l := threeTools(t)
		f.research["beta official site"] = search.Output{Results: []types.SearchResult{{URL: "https://beta.dev"}}}
		f.scrapeErr = map[string]error{"https://beta.dev": scrapeErr}
		l.recommendation = rankingJSON("Use gamma.", "gamma", "alpha")

		r := newMachine(f, l, types.WorkflowConfig{}).Run(context.Background(), "machine learning platforms")

		assert.Equal(t, types.StageCompleted, r.Stage)
		require.Len(t, r.Analyses, 2)
		assert.Equal(t, "alpha", r.Analyses[0].Candidate.Name)
		assert.Equal(t, "gamma", r.Analyses[1].Candidate.Name)
		assert.Zero(t, l.count(llm.PurposeAnalysis+":beta"))
		require.Len(t, r.Errors, 1)
		assert.Equal(t, types.KindInvalidResponse, r.Errors[0].Kind)
		assert.Equal(t, "https://beta.dev", r.Errors[0].Subject)
		assert.False(t, r.Errors[0].Recovered)
	})

	t.Run("snippet substitutes for the page", func(t *testing.T) {
		f, l := threeTools(t)
		f.scrapeErr = map[string]error{"https://beta.dev": scrapeErr}

		r := newMachine(f, l, types.WorkflowConfig{}).Run(context.Background(), "machine learning platforms")

		assert.Equal(t, types.StageCompleted, r.Stage)
		assert.Len(t, r.Analyses, 3)
		require.Len(t, r.Errors, 1)
		assert.Equal(t, types.KindInvalidResponse, r.Errors[0].Kind)
		assert.True(t, r.Errors[0].Recovered)
	})

	t.Run("empty page and no snippet is not found", func(t *testing.T) {
		f, l := threeTools(t)
		f.research["beta official site"] = search.Output{Results: []types.SearchResult{{URL: "https://beta.dev"}}}
		delete(f.pages, "https://beta.dev")
		l.recommendation = rankingJSON("Use gamma.", "gamma", "alpha")

		r := newMachine(f, l, types.WorkflowConfig{}).Run(context.Background(), "machine learning platforms")

		assert.Equal(t, types.StageCompleted, r.Stage)
		assert.Len(t, r.Analyses, 2)
		require.Len(t, r.Errors, 1)
		assert.Equal(t, types.KindNotFound, r.Errors[0].Kind)
	})
}

func TestRunResearchFallsBackToDiscoveryURL(t *testing.T) {
	f, l := threeTools(t)
	delete(f.research, "gamma official site")
	f.pages["https://list.example/2"] = "list page"

	r := newMachine(f, l, types.WorkflowConfig{}).Run(context.Background(), "machine learning platforms")

	assert.Equal(t, types.StageCompleted, r.Stage)
	require.Len(t, r.Candidates, 3)
	assert.Equal(t, "https://list.example/2", r.Candidates[2].Website)
	assert.Len(t, r.Analyses, 3)
}

func TestRunExplicitTargetsSkipDiscoverySearch(t *testing.T) {
	f := &fakeSearch{
		research: map[string]search.Output{
			"datadog official site":  {Results: []types.SearchResult{{URL: "https://datadoghq.com", Snippet: "datadog"}}},
			"newrelic official site": {Results: []types.SearchResult{{URL: "https://newrelic.com", Snippet: "new relic"}}},
		},
	}
	l := &stubLLM{recommendation: rankingJSON("Pick datadog.", "datadog", "newrelic")}

	r := newMachine(f, l, types.WorkflowConfig{}).Run(context.Background(), "datadog vs newrelic")

	assert.Equal(t, types.StageCompleted, r.Stage)
	assert.Empty(t, f.stageRuns(types.StageDiscovering))
	assert.Zero(t, l.count(llm.PurposeExtraction))
	assert.Len(t, r.Queries, 5)
	require.Len(t, r.Candidates, 2)
	for _, c := range r.Candidates {
		assert.Equal(t, 1.0, c.Confidence)
	}
	// Scrape returned nothing, so the analyses were built from snippets.
	assert.Len(t, r.Analyses, 2)
}

func TestRunExplicitTargetsCapped(t *testing.T) {
	f, l := threeTools(t)
	l.recommendation = rankingJSON("Use alpha.", "alpha", "beta")

	r := newMachine(f, l, types.WorkflowConfig{MaxCandidates: 2}).Run(context.Background(), "alpha vs beta vs gamma vs delta")

	assert.Equal(t, types.StageCompleted, r.Stage)
	assert.Empty(t, f.stageRuns(types.StageDiscovering))
	assert.Equal(t, []string{"alpha", "beta"}, candidateNames(r.Candidates))
	assert.Len(t, f.stageRuns(types.StageResearching), 2)
}

func TestRunAlternativesExcludesTarget(t *testing.T) {
	f, l := threeTools(t)
	l.extraction = extractionJSON(t,
		llm.ExtractedTool{Name: "MLflow", Confidence: 0.99, Sources: []int{0}},
		llm.ExtractedTool{Name: "alpha", Confidence: 0.9, Sources: []int{0}},
		llm.ExtractedTool{Name: "Alpha", Confidence: 0.7, Sources: []int{1}},
	)
	l.recommendation = rankingJSON("Use alpha.", "alpha")

	r := newMachine(f, l, types.WorkflowConfig{}).Run(context.Background(), "mlflow alternatives")

	assert.Equal(t, types.StageCompleted, r.Stage)
	require.Len(t, r.Candidates, 1)
	assert.Equal(t, "alpha", r.Candidates[0].Name)
	assert.Equal(t, 0.9, r.Candidates[0].Confidence)
	assert.Contains(t, r.Candidates[0].SourceURLs, "https://list.example/2")
}

func TestRunMaxCandidates(t *testing.T) {
	f, l := threeTools(t)
	l.recommendation = rankingJSON("Use gamma.", "gamma", "alpha")

	r := newMachine(f, l, types.WorkflowConfig{MaxCandidates: 2}).Run(context.Background(), "machine learning platforms")

	assert.Equal(t, types.StageCompleted, r.Stage)
	assert.Equal(t, []string{"alpha", "gamma"}, candidateNames(r.Candidates))
}

func TestRunDiscoveryUnauthorizedIsFatal(t *testing.T) {
	f := &fakeSearch{discoveryErr: failure.Provider("serper", types.KindUnauthorized, "HTTP 403", nil)}

	r := newMachine(f, &stubLLM{}, types.WorkflowConfig{}).Run(context.Background(), "machine learning platforms")

	assert.Equal(t, types.StageFailed, r.Stage)
	assert.Equal(t, types.StageDiscovering, r.FailedIn)
	assert.Equal(t, types.KindUnauthorized, r.FailureKind)
}

func TestRunMalformedAnalysisRetriedOnce(t *testing.T) {
	f, l := threeTools(t)
	l.analysis = func(_ context.Context, tool string, n int) (string, error) {
		switch {
		case tool == "alpha":
			return "not json", nil
		case tool == "beta" && n == 0:
			return `{"pricing_model":`, nil
		default:
			return analysisJSON("paid"), nil
		}
	}

	r := newMachine(f, l, types.WorkflowConfig{}).Run(context.Background(), "machine learning platforms")

	assert.Equal(t, types.StageCompleted, r.Stage)
	assert.Equal(t, 2, l.count("analysis:alpha"))
	assert.Equal(t, 2, l.count("analysis:beta"))
	assert.Equal(t, 1, l.count("analysis:gamma"))

	require.Len(t, r.Analyses, 3)
	assert.Equal(t, types.PricingUnknown, r.Analyses[0].PricingModel)
	assert.True(t, r.Analyses[0].Degraded)
	assert.Equal(t, types.PricingPaid, r.Analyses[1].PricingModel)
	assert.False(t, r.Analyses[1].Degraded)

	require.Len(t, r.Errors, 1)
	assert.Equal(t, types.KindInvalidOutput, r.Errors[0].Kind)
	assert.Equal(t, "alpha", r.Errors[0].Subject)
	assert.Equal(t, 1, r.Errors[0].Retried)
	assert.True(t, r.Errors[0].Recovered)
}

func TestRunDegradedRecommendation(t *testing.T) {
	f, l := threeTools(t)
	l.recommendation = func(context.Context) (string, error) {
		return "", failure.LLM(types.KindNetwork, "connection reset", nil)
	}

	r := newMachine(f, l, types.WorkflowConfig{}).Run(context.Background(), "machine learning platforms")

	assert.Equal(t, types.StageCompleted, r.Stage)
	require.NotNil(t, r.Recommendation)
	assert.True(t, r.Recommendation.Degraded)
	assert.Equal(t, []string{"gamma", "alpha", "beta"}, r.Recommendation.Ranking)
	assert.Contains(t, r.Recommendation.Text, "gamma, alpha, beta")
	assert.Equal(t, 2, l.count(llm.PurposeRecommendation))
	require.Len(t, r.Errors, 1)
	assert.Equal(t, types.KindNetwork, r.Errors[0].Kind)
	assert.True(t, r.Errors[0].Recovered)
}

func TestRunSessionTimeoutKeepsPartialAnalyses(t *testing.T) {
	defer goleak.VerifyNone(t)

	f, l := threeTools(t)
	l.analysis = func(ctx context.Context, tool string, _ int) (string, error) {
		if tool == "alpha" {
			return analysisJSON("freemium"), nil
		}
		<-ctx.Done()
		return "", ctx.Err()
	}

	r := newMachine(f, l, types.WorkflowConfig{SessionTimeout: 100 * time.Millisecond}).
		Run(context.Background(), "machine learning platforms")

	assert.Equal(t, types.StageFailed, r.Stage)
	assert.Equal(t, types.StageAnalyzing, r.FailedIn)
	assert.Equal(t, types.KindSessionTimeout, r.FailureKind)
	require.Len(t, r.Analyses, 1)
	assert.Equal(t, "alpha", r.Analyses[0].Candidate.Name)
	assert.Nil(t, r.Recommendation)
	last := r.Errors[len(r.Errors)-1]
	assert.Equal(t, types.KindSessionTimeout, last.Kind)
}

func TestRunCancelled(t *testing.T) {
	f, l := threeTools(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newMachine(f, l, types.WorkflowConfig{}).Run(ctx, "machine learning platforms")

	assert.Equal(t, types.StageFailed, r.Stage)
	assert.Equal(t, types.StageDiscovering, r.FailedIn)
	assert.Equal(t, types.KindSessionTimeout, r.FailureKind)
	assert.Contains(t, r.Errors[len(r.Errors)-1].Message, "cancelled")
}

func TestRunDeterministic(t *testing.T) {
	var first types.Report
	for i := range 5 {
		f, l := threeTools(t)
		m := newMachine(f, l, types.WorkflowConfig{MaxConcurrency: 3})
		fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		m.now = func() time.Time { return fixed }
		r := m.Run(context.Background(), "machine learning platforms")
		if i == 0 {
			first = r
			continue
		}
		assert.Equal(t, first, r)
	}
}

// --- helpers ---

func TestSelectTop(t *testing.T) {
	cs := []types.ToolCandidate{
		{Name: "a", Confidence: 0.5},
		{Name: "b", Confidence: 0.9},
		{Name: "c", Confidence: 0.5},
		{Name: "d", Confidence: 0.7},
	}
	assert.Equal(t, []string{"b", "d"}, candidateNames(selectTop(cs, 2)))
	assert.Equal(t, []string{"a", "b", "d"}, candidateNames(selectTop(cs, 3)))
	assert.Len(t, selectTop(cs, 10), 4)
}

func TestDegradedRecommendationTies(t *testing.T) {
	rec := degradedRecommendation([]types.ToolAnalysis{
		{Candidate: types.ToolCandidate{Name: "Zeta", Confidence: 0.8}},
		{Candidate: types.ToolCandidate{Name: "alpha", Confidence: 0.8}},
		{Candidate: types.ToolCandidate{Name: "Mid", Confidence: 0.9}},
	})
	assert.True(t, rec.Degraded)
	assert.Equal(t, []string{"Mid", "alpha", "Zeta"}, rec.Ranking)

	empty := degradedRecommendation(nil)
	assert.Empty(t, empty.Ranking)
	assert.NotEmpty(t, empty.Text)
}
