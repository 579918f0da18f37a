// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/toolscout/internal/httputil"
	"github.com/pdiddy/toolscout/pkg/types"
)

// firecrawlAPIBase is the Firecrawl v1 API root. Declared as a var so
// tests can substitute an httptest server.
var firecrawlAPIBase = "https://api.firecrawl.dev/v1"

// Firecrawl searches the web and scrapes pages to Markdown. It is the
// primary provider.
type Firecrawl struct {
	Client    *http.Client
	APIKey    string
	UserAgent string

	limiter *rate.Limiter
}

// NewFirecrawl returns a Firecrawl adapter configured from cfg.
func NewFirecrawl(cfg types.SearchConfig) *Firecrawl {
	return &Firecrawl{
		Client:    httpClient(cfg),
		APIKey:    cfg.FirecrawlAPIKey,
		UserAgent: cfg.UserAgent,
		limiter:   newLimiter(cfg.RequestsPerSecond),
	}
}

// Name returns the provider identifier.
func (f *Firecrawl) Name() string { return types.SourceFirecrawl }

// Search calls /search and requests Markdown content for every hit, so
// results often carry Content already.
func (f *Firecrawl) Search(ctx context.Context, q types.SearchQuery, limit int) (results []types.SearchResult, err error) {
	start := time.Now()
	defer func() { observe(f.Name(), "search", start, err) }()

	if err := wait(ctx, f.limiter, f.Name()); err != nil {
		return nil, err
	}

	payload := firecrawlSearchRequest{
		Query:         q.Text,
		Limit:         limit,
		ScrapeOptions: &firecrawlScrapeOptions{Formats: []string{"markdown"}},
	}
	var resp firecrawlSearchResponse
	if err := f.post(ctx, "/search", payload, &resp); err != nil {
		return nil, err
	}

	for _, d := range resp.Data {
		if d.URL == "" {
			continue
		}
		results = append(results, types.SearchResult{
			URL:     d.URL,
			Title:   strings.TrimSpace(d.Title),
			Snippet: strings.TrimSpace(d.Description),
			Content: d.Markdown,
			Source:  f.Name(),
		})
		if limit > 0 && len(results) == limit {
			break
		}
	}
	return results, nil
}

// Scrape calls /scrape for a single page.
func (f *Firecrawl) Scrape(ctx context.Context, url string) (content string, err error) {
	start := time.Now()
	defer func() { observe(f.Name(), "scrape", start, err) }()

	if err := wait(ctx, f.limiter, f.Name()); err != nil {
		return "", err
	}

	var resp firecrawlScrapeResponse
	payload := firecrawlScrapeRequest{URL: url, Formats: []string{"markdown"}, OnlyMainContent: true}
	if err := f.post(ctx, "/scrape", payload, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Data.Markdown), nil
}

// post sends payload to path and decodes a successful envelope into out.
func (f *Firecrawl) post(ctx context.Context, path string, payload any, out firecrawlEnvelope) error {
	wrap := httputil.ForProvider(f.Name())
	req, err := httputil.NewJSONRequest(ctx, http.MethodPost, firecrawlAPIBase+path, payload, f.UserAgent)
	if err != nil {
		return wrap(types.KindInvalidResponse, "building request", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.APIKey)

	body, err := httputil.Do(ctx, f.Client, req, wrap)
	if err != nil {
		return err
	}
	if err := httputil.DecodeJSON(body, out, wrap); err != nil {
		return err
	}
	if ok, msg := out.status(); !ok {
		return wrap(types.KindInvalidResponse, "unsuccessful response: "+msg, nil)
	}
	return nil
}

// Firecrawl API JSON structures.
type firecrawlEnvelope interface {
	status() (bool, string)
}

type firecrawlScrapeOptions struct {
	Formats []string `json:"formats"`
}

type firecrawlSearchRequest struct {
	Query         string                  `json:"query"`
	Limit         int                     `json:"limit,omitempty"`
	ScrapeOptions *firecrawlScrapeOptions `json:"scrapeOptions,omitempty"`
}

type firecrawlScrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type firecrawlSearchResponse struct {
	Success bool                `json:"success"`
	Error   string              `json:"error"`
	Data    []firecrawlDocument `json:"data"`
}

func (r *firecrawlSearchResponse) status() (bool, string) { return r.Success, r.Error }

type firecrawlScrapeResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Data    firecrawlDocument `json:"data"`
}

func (r *firecrawlScrapeResponse) status() (bool, string) { return r.Success, r.Error }

type firecrawlDocument struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Markdown    string `json:"markdown"`
}
