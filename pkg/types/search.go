// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SourceHint marks which tier a built query is intended for.
type SourceHint string

const (
	HintPrimary  SourceHint = "primary"
	HintFallback SourceHint = "fallback"
)

// SearchQuery is one optimized query string. A slice of SearchQuery is in
// preference order: lower Rank is more specific.
type SearchQuery struct {
	Text       string     `json:"text" yaml:"text"`
	SourceHint SourceHint `json:"source_hint" yaml:"source_hint"`
	Rank       int        `json:"rank" yaml:"rank"`
}

// Provider names used as SearchResult.Source.
const (
	SourceFirecrawl = "firecrawl"
	SourceSerper    = "serper"
)

// SearchResult is a single hit returned by a search provider. Results are
// deduplicated by normalized URL.
type SearchResult struct {
	URL     string `json:"url" yaml:"url"`
	Title   string `json:"title" yaml:"title"`
	Snippet string `json:"snippet" yaml:"snippet"`

	// Content is the scraped page body (Markdown) when the provider returns
	// it inline. Empty means absent.
	Content string `json:"content,omitempty" yaml:"content,omitempty"`

	// Source names the provider that produced the result (e.g. "firecrawl").
	Source string `json:"source" yaml:"source"`
}
