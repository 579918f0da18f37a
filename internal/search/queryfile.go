// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/toolscout/pkg/types"
)

// QueryFile is the on-disk representation of a hybrid search and its
// results. A saved search can be reloaded later without calling any
// provider.
type QueryFile struct {
	Query   string               `yaml:"query"`
	Queries []types.SearchQuery  `yaml:"queries"`
	Config  QueryFileConfig      `yaml:"config"`
	Results []types.SearchResult `yaml:"results"`
	Summary QuerySummary         `yaml:"summary"`
}

// QueryFileConfig stores the search configuration that produced the results.
type QueryFileConfig struct {
	MaxResults     int      `yaml:"max_results"`
	EnableFallback bool     `yaml:"enable_fallback"`
	Tiers          []string `yaml:"tiers"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Total             int                 `yaml:"total"`
	DuplicatesRemoved int                 `yaml:"duplicates_removed"`
	Retries           int                 `yaml:"retries"`
	Errors            []types.ErrorRecord `yaml:"errors,omitempty"`
	Timestamp         time.Time           `yaml:"timestamp"`
}

// WriteQueryFile saves a search run to a YAML file.
func (s *Strategy) WriteQueryFile(path, raw string, queries []types.SearchQuery, out Output, now time.Time) error {
	qf := QueryFile{
		Query:   raw,
		Queries: queries,
		Config: QueryFileConfig{
			MaxResults:     s.cfg.MaxResults,
			EnableFallback: s.cfg.EnableFallback,
			Tiers:          s.Tiers(),
		},
		Results: out.Results,
		Summary: QuerySummary{
			Total:             len(out.Results),
			DuplicatesRemoved: out.DupsRemoved,
			Retries:           out.Retries,
			Errors:            out.Errors,
			Timestamp:         now.UTC(),
		},
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}
