// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"github.com/pdiddy/toolscout/pkg/types"
)

// Analysis is the offline view of how a query would be handled: its
// intent, the queries that would be searched, and whether discovery
// search would be skipped.
type Analysis struct {
	Intent  types.QueryIntent   `json:"intent" yaml:"intent"`
	Queries []types.SearchQuery `json:"queries" yaml:"queries"`

	// Valid is false when no query survived validation.
	Valid bool `json:"valid" yaml:"valid"`

	// SkipsDiscovery is set when the query names its tools outright.
	SkipsDiscovery bool `json:"skips_discovery" yaml:"skips_discovery"`

	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Analyze classifies raw and builds its queries without calling any
// provider.
func Analyze(c *Classifier, b *Builder, raw string) Analysis {
	intent, err := c.SafeClassify(raw)
	if err != nil {
		return Analysis{Intent: intent, Error: err.Error()}
	}
	a := Analysis{Intent: intent, SkipsDiscovery: intent.HasExplicitTargets()}
	queries, err := b.Build(intent)
	if err != nil {
		a.Error = err.Error()
		return a
	}
	a.Queries = queries
	a.Valid = len(queries) > 0
	return a
}
