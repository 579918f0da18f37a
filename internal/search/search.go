// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search runs built queries against an ordered list of provider
// tiers and merges the results into one deduplicated, capped list.
//
// Tier 0 is the primary provider. A query moves to the next tier only when
// every earlier tier failed (after retries) or returned nothing. Results
// of tier 0 for all queries precede results of tier 1 for all queries, and
// so on; within a tier, results keep query order then provider order.
package search

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pdiddy/toolscout/internal/failure"
	"github.com/pdiddy/toolscout/internal/provider"
	"github.com/pdiddy/toolscout/internal/retry"
	"github.com/pdiddy/toolscout/pkg/types"
)

// Strategy is the hybrid search over ordered provider tiers. It holds no
// per-run state and may be shared across sessions.
type Strategy struct {
	tiers  []provider.Provider
	cfg    types.SearchConfig
	policy retry.Policy
	logger *zap.Logger
}

// New returns a Strategy over tiers, primary first. When
// cfg.EnableFallback is false only the first tier is used.
func New(tiers []provider.Provider, cfg types.SearchConfig, policy retry.Policy, logger *zap.Logger) *Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	active := append([]provider.Provider(nil), tiers...)
	if !cfg.EnableFallback && len(active) > 1 {
		active = active[:1]
	}
	return &Strategy{tiers: active, cfg: cfg, policy: policy, logger: logger}
}

// Tiers returns the provider names in tier order.
func (s *Strategy) Tiers() []string {
	names := make([]string, len(s.tiers))
	for i, p := range s.tiers {
		names[i] = p.Name()
	}
	return names
}

// Output is the merged outcome of one Run.
type Output struct {
	Results []types.SearchResult

	// Errors holds one record per provider call that failed after retries.
	Errors []types.ErrorRecord

	// Retries counts re-attempts across all calls.
	Retries int

	DupsRemoved int
}

// Run executes queries in order. Provider failures are recorded in
// Output.Errors and do not stop the run. An unauthorized failure from any
// tier, or the end of ctx, stops the run and is returned together with
// the partial output.
func (s *Strategy) Run(ctx context.Context, stage string, queries []types.SearchQuery) (Output, error) {
	var out Output
	if len(s.tiers) == 0 {
		return out, fmt.Errorf("no search providers configured")
	}

	perTier := make([][]types.SearchResult, len(s.tiers))
	for _, q := range queries {
		for ti, p := range s.tiers {
			results, err := s.search(ctx, stage, p, q, &out)
			if err != nil {
				if failure.Fatal(err) || ctx.Err() != nil {
					out.Results, out.DupsRemoved = s.merge(perTier)
					return out, err
				}
				continue
			}
			if len(results) == 0 {
				s.logger.Debug("provider returned no results",
					zap.String("provider", p.Name()),
					zap.String("query", q.Text),
				)
				continue
			}
			perTier[ti] = append(perTier[ti], results...)
			break
		}
	}

	out.Results, out.DupsRemoved = s.merge(perTier)
	return out, nil
}

func (s *Strategy) search(ctx context.Context, stage string, p provider.Provider, q types.SearchQuery, out *Output) ([]types.SearchResult, error) {
	op := retry.Op{Stage: stage, Name: p.Name() + ".search", Subject: q.Text}
	results, outcome, err := retry.Do(ctx, s.policy, op, func(ctx context.Context) ([]types.SearchResult, error) {
		return p.Search(ctx, q, s.cfg.MaxResults)
	})
	out.Retries += outcome.Retries
	if err != nil {
		s.logger.Warn("provider search failed",
			zap.String("provider", p.Name()),
			zap.String("query", q.Text),
			zap.Int("attempt", outcome.Retries+1),
			zap.Error(err),
		)
		if outcome.Record != nil {
			out.Errors = append(out.Errors, *outcome.Record)
		}
		return nil, err
	}
	return results, nil
}

// merge concatenates tiers in order, drops later duplicates by normalized
// URL and caps the list at MaxResults.
func (s *Strategy) merge(perTier [][]types.SearchResult) ([]types.SearchResult, int) {
	seen := make(map[string]bool)
	var merged []types.SearchResult
	removed := 0
	for _, tier := range perTier {
		for _, r := range tier {
			key := NormalizeURL(r.URL)
			if seen[key] {
				removed++
				continue
			}
			seen[key] = true
			merged = append(merged, r)
		}
	}
	if s.cfg.MaxResults > 0 && len(merged) > s.cfg.MaxResults {
		merged = merged[:s.cfg.MaxResults]
	}
	return merged, removed
}

// Scrape fetches pageURL from the first tier that returns non-empty content.
// Failed tiers are recorded; if every tier failed the last error is
// returned. All tiers answering with empty content is not an error.
func (s *Strategy) Scrape(ctx context.Context, stage, pageURL string) (string, []types.ErrorRecord, error) {
	var (
		records []types.ErrorRecord
		lastErr error
	)
	for _, p := range s.tiers {
		op := retry.Op{Stage: stage, Name: p.Name() + ".scrape", Subject: pageURL}
		content, outcome, err := retry.Do(ctx, s.policy, op, func(ctx context.Context) (string, error) {
			return p.Scrape(ctx, pageURL)
		})
		if err != nil {
			s.logger.Warn("provider scrape failed",
				zap.String("provider", p.Name()),
				zap.String("url", pageURL),
				zap.Error(err),
			)
			if outcome.Record != nil {
				records = append(records, *outcome.Record)
			}
			if failure.Fatal(err) || ctx.Err() != nil {
				return "", records, err
			}
			lastErr = err
			continue
		}
		if strings.TrimSpace(content) != "" {
			return content, records, nil
		}
		lastErr = nil
	}
	return "", records, lastErr
}

// NormalizeURL returns the deduplication key for u: scheme and host lower
// cased, "www." and default ports dropped, fragment and utm_* parameters
// removed, remaining parameters sorted, and no trailing slash.
func NormalizeURL(u string) string {
	raw := strings.TrimSpace(u)
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return strings.TrimSuffix(strings.ToLower(raw), "/")
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if port := parsed.Port(); port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host += ":" + port
	}

	q := parsed.Query()
	for k := range q {
		if strings.HasPrefix(strings.ToLower(k), "utm_") {
			q.Del(k)
		}
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(strings.TrimSuffix(parsed.EscapedPath(), "/"))
	if enc := q.Encode(); enc != "" {
		b.WriteString("?")
		b.WriteString(enc)
	}
	return b.String()
}

// FormatTable writes results as a numbered list to w.
func FormatTable(results []types.SearchResult, w io.Writer) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	for i, r := range results {
		title := r.Title
		if utf8.RuneCountInString(title) > 70 {
			title = string([]rune(title)[:67]) + "..."
		}
		fmt.Fprintf(w, "%2d. %-70s  %-9s  %s\n", i+1, title, r.Source, r.URL)
	}
}
