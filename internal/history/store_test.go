// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/toolscout/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.HistoryConfig{Path: filepath.Join(t.TempDir(), "nested", "history.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func report(id, query string, stage types.Stage, started time.Time) types.Report {
	r := types.Report{
		SessionID:  id,
		Query:      query,
		Stage:      stage,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Candidates: []types.ToolCandidate{{Name: "alpha", Confidence: 0.9, SourceURLs: []string{"https://alpha.dev"}}},
		Analyses: []types.ToolAnalysis{{
			Candidate:    types.ToolCandidate{Name: "alpha", Confidence: 0.9, SourceURLs: []string{"https://alpha.dev"}},
			PricingModel: types.PricingFreemium,
			TechStack:    []string{"go"},
			Integrations: []string{"github"},
		}},
		Recommendation: &types.Recommendation{Text: "Use alpha.", Ranking: []string{"alpha"}},
		Errors:         []types.ErrorRecord{},
	}
	if stage == types.StageFailed {
		r.FailedIn = types.StageResearching
		r.FailureKind = types.KindAllCandidatesFailed
		r.Analyses = nil
		r.Recommendation = nil
	}
	return r
}

func TestSaveAndGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	want := report("s1", "mlflow alternatives", types.StageCompleted, started)

	require.NoError(t, s.Save(ctx, want))
	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, want.Query, got.Query)
	assert.Equal(t, want.Analyses, got.Analyses)
	assert.Equal(t, want.Recommendation, got.Recommendation)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))
}

func TestSaveReplaces(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, report("s1", "first", types.StageCompleted, started)))
	require.NoError(t, s.Save(ctx, report("s1", "second", types.StageFailed, started)))

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Query)
	assert.Equal(t, types.StageFailed, got.Stage)

	list, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSaveRequiresID(t *testing.T) {
	s := testStore(t)
	assert.Error(t, s.Save(context.Background(), types.Report{Query: "x"}))
}

func TestGetNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestList(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, report("a", "mlflow alternatives", types.StageCompleted, base)))
	require.NoError(t, s.Save(ctx, report("b", "datadog vs newrelic", types.StageFailed, base.Add(time.Hour))))
	require.NoError(t, s.Save(ctx, report("c", "MLflow pricing", types.StageCompleted, base.Add(2*time.Hour))))
	require.NoError(t, s.Save(ctx, report("d", "100%_done", types.StageCompleted, base.Add(3*time.Hour))))

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"all newest first", ListOptions{}, []string{"d", "c", "b", "a"}},
		{"query match ignores case", ListOptions{Query: "mlflow"}, []string{"c", "a"}},
		{"stage filter", ListOptions{Stage: types.StageFailed}, []string{"b"}},
		{"limit", ListOptions{Limit: 2}, []string{"d", "c"}},
		{"like metacharacters are literal", ListOptions{Query: "%_"}, []string{"d"}},
		{"no match", ListOptions{Query: "kubernetes"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.opts)
			require.NoError(t, err)
			var ids []string
			for _, sum := range got {
				ids = append(ids, sum.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	failed, err := s.List(ctx, ListOptions{Stage: types.StageFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, types.StageResearching, failed[0].FailedIn)
	assert.Equal(t, types.KindAllCandidatesFailed, failed[0].FailureKind)
	assert.Equal(t, 1, failed[0].Candidates)
	assert.Equal(t, 0, failed[0].Analyses)
	assert.True(t, base.Add(time.Hour).Equal(failed[0].StartedAt))
}
