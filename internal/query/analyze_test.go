// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/toolscout/pkg/types"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		raw   string
		valid bool
		skips bool
		typ   types.QueryType
	}{
		{"mlflow alternatives", true, false, types.TypeAlternatives},
		{"datadog vs newrelic", true, true, types.TypeComparison},
		{"docker pricing", true, true, types.TypePricing},
		{"machine learning platforms", true, false, types.TypeGeneral},
		{"   ", false, false, types.TypeGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			a := Analyze(Default(), DefaultBuilder(), tt.raw)
			assert.Equal(t, tt.valid, a.Valid)
			assert.Equal(t, tt.skips, a.SkipsDiscovery)
			assert.Equal(t, tt.typ, a.Intent.Type)
			if tt.valid {
				require.NotEmpty(t, a.Queries)
				assert.Empty(t, a.Error)
			} else {
				assert.Empty(t, a.Queries)
				assert.NotEmpty(t, a.Error)
			}
		})
	}
}

func TestAnalyzeClassificationFailure(t *testing.T) {
	rules := DefaultRules()
	rules.Types[0].Patterns = append(rules.Types[0].Patterns, nil)

	a := Analyze(NewClassifier(rules), DefaultBuilder(), "anything")
	assert.False(t, a.Valid)
	assert.Contains(t, a.Error, "classif")
}
