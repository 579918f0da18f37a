// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/toolscout/internal/failure"
	"github.com/pdiddy/toolscout/pkg/types"
)

func build(t *testing.T, raw string) []types.SearchQuery {
	t.Helper()
	qs, err := DefaultBuilder().Build(Default().Classify(raw))
	require.NoError(t, err)
	return qs
}

func texts(qs []types.SearchQuery) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Text
	}
	return out
}

func TestBuildAlternatives(t *testing.T) {
	qs := build(t, "mlflow alternatives")
	require.NotEmpty(t, qs)

	first := qs[0].Text
	assert.Contains(t, first, "alternatives")
	assert.Contains(t, first, "machine learning")
	for _, q := range qs {
		assert.NotContains(t, q.Text, "pricing")
	}
	assert.Equal(t, []string{
		"mlflow alternatives machine learning AI",
		"mlflow alternatives comparison best tools",
		"mlflow alternatives",
	}, texts(qs))
}

func TestBuildComparison(t *testing.T) {
	qs := build(t, "datadog vs newrelic")
	require.Len(t, qs, MaxQueries)
	assert.Equal(t, "datadog vs newrelic comparison features monitoring logging observability", qs[0].Text)
	assert.Equal(t, "datadog vs newrelic", qs[len(qs)-1].Text)
	assert.Equal(t, types.HintFallback, qs[len(qs)-1].SourceHint)
}

func TestBuildPricingMentionsPricing(t *testing.T) {
	qs := build(t, "docker pricing")
	assert.Contains(t, qs[0].Text, "pricing")
}

func TestBuildOrderingAndRanks(t *testing.T) {
	for _, raw := range []string{"mlflow alternatives", "datadog vs newrelic", "react tutorial", "kubernetes monitoring tools"} {
		t.Run(raw, func(t *testing.T) {
			qs := build(t, raw)
			require.NotEmpty(t, qs)
			assert.LessOrEqual(t, len(qs), MaxQueries)

			seen := map[string]bool{}
			for i, q := range qs {
				assert.Equal(t, i, q.Rank)
				assert.LessOrEqual(t, len(q.Text), MaxQueryLength)
				assert.False(t, seen[strings.ToLower(q.Text)], "duplicate %q", q.Text)
				seen[strings.ToLower(q.Text)] = true
				if i < len(qs)-1 {
					assert.Equal(t, types.HintPrimary, q.SourceHint)
				}
			}
			assert.Equal(t, types.HintFallback, qs[len(qs)-1].SourceHint)
		})
	}
}

func TestBuildDeterministic(t *testing.T) {
	first := build(t, "grafana vs prometheus vs datadog")
	for range 10 {
		assert.Equal(t, first, build(t, "grafana vs prometheus vs datadog"))
	}
}

func TestBuildFallsBackToRawText(t *testing.T) {
	// Every template output is a single significant word after
	// optimization, so only the raw text survives.
	b := NewBuilder(Templates{
		Type:    map[types.QueryType]string{types.TypeGeneral: "{tool}"},
		Article: map[types.QueryType]string{types.TypeGeneral: "{tool}"},
	})
	qs, err := b.Build(types.QueryIntent{RawText: "  Zig  ", Type: types.TypeGeneral, Category: types.CategoryGeneral})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, types.SearchQuery{Text: "zig", SourceHint: types.HintFallback, Rank: 0}, qs[0])
}

func TestBuildEmpty(t *testing.T) {
	_, err := DefaultBuilder().Build(types.QueryIntent{RawText: "   "})
	var qe *failure.QueryValidationError
	require.ErrorAs(t, err, &qe)
}

func TestBuildDropsOverlongTemplateQueries(t *testing.T) {
	raw := strings.Repeat("observability ", 40) + "alternatives"
	qs := build(t, raw)
	require.Len(t, qs, 1)
	assert.Equal(t, types.HintFallback, qs[0].SourceHint)
	assert.LessOrEqual(t, len(qs[0].Text), MaxQueryLength)
	assert.True(t, strings.HasPrefix(raw, qs[0].Text))
}

func TestBuildNothingSearchable(t *testing.T) {
	for _, raw := range []string{"a", "best tools", "alternatives"} {
		t.Run(raw, func(t *testing.T) {
			qs := build(t, raw)
			assert.Equal(t, []types.SearchQuery{{Text: raw, SourceHint: types.HintFallback, Rank: 0}}, qs)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "alpha beta", truncate("alpha beta gamma", 12))

	// "é" is two bytes; a cut at 3 would split it.
	got := truncate("aaé", 3)
	assert.Equal(t, "aa", got)
	assert.True(t, utf8.ValidString(got))
}

func TestValid(t *testing.T) {
	b := DefaultBuilder()
	assert.True(t, b.valid("mlflow alternatives"))
	assert.False(t, b.valid("mlflow"))
	assert.False(t, b.valid("the mlflow"))
	assert.False(t, b.valid("a@b $$ %% ^^ **"))
	assert.False(t, b.valid(strings.Repeat("x ", 101)))
}
