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

// Serper endpoints. Declared as vars so tests can substitute an httptest
// server.
var (
	serperSearchURL = "https://google.serper.dev/search"
	serperScrapeURL = "https://scrape.serper.dev"
)

// serperMaxResults is the largest page Serper is asked for.
const serperMaxResults = 10

// Serper wraps the Serper Google search API. It is the fallback provider.
type Serper struct {
	Client    *http.Client
	APIKey    string
	UserAgent string

	limiter *rate.Limiter
}

// NewSerper returns a Serper adapter configured from cfg.
func NewSerper(cfg types.SearchConfig) *Serper {
	return &Serper{
		Client:    httpClient(cfg),
		APIKey:    cfg.SerperAPIKey,
		UserAgent: cfg.UserAgent,
		limiter:   newLimiter(cfg.RequestsPerSecond),
	}
}

// Name returns the provider identifier.
func (s *Serper) Name() string { return types.SourceSerper }

// Search returns organic results only; Serper results carry no Content.
func (s *Serper) Search(ctx context.Context, q types.SearchQuery, limit int) (results []types.SearchResult, err error) {
	start := time.Now()
	defer func() { observe(s.Name(), "search", start, err) }()

	if err := wait(ctx, s.limiter, s.Name()); err != nil {
		return nil, err
	}

	num := limit
	if num <= 0 || num > serperMaxResults {
		num = serperMaxResults
	}
	var resp serperSearchResponse
	if err := s.post(ctx, serperSearchURL, serperSearchRequest{Q: q.Text, Num: num}, &resp); err != nil {
		return nil, err
	}

	for _, o := range resp.Organic {
		if o.Link == "" {
			continue
		}
		results = append(results, types.SearchResult{
			URL:     o.Link,
			Title:   strings.TrimSpace(o.Title),
			Snippet: strings.TrimSpace(o.Snippet),
			Source:  s.Name(),
		})
		if len(results) == num {
			break
		}
	}
	return results, nil
}

// Scrape fetches a page through Serper's scrape endpoint, preferring
// Markdown over plain text.
func (s *Serper) Scrape(ctx context.Context, url string) (content string, err error) {
	start := time.Now()
	defer func() { observe(s.Name(), "scrape", start, err) }()

	if err := wait(ctx, s.limiter, s.Name()); err != nil {
		return "", err
	}

	var resp serperScrapeResponse
	if err := s.post(ctx, serperScrapeURL, serperScrapeRequest{URL: url, IncludeMarkdown: true}, &resp); err != nil {
		return "", err
	}
	if md := strings.TrimSpace(resp.Markdown); md != "" {
		return md, nil
	}
	return strings.TrimSpace(resp.Text), nil
}

func (s *Serper) post(ctx context.Context, endpoint string, payload, out any) error {
	wrap := httputil.ForProvider(s.Name())
	req, err := httputil.NewJSONRequest(ctx, http.MethodPost, endpoint, payload, s.UserAgent)
	if err != nil {
		return wrap(types.KindInvalidResponse, "building request", err)
	}
	req.Header.Set("X-API-KEY", s.APIKey)

	body, err := httputil.Do(ctx, s.Client, req, wrap)
	if err != nil {
		return err
	}
	return httputil.DecodeJSON(body, out, wrap)
}

// Serper API JSON structures.
type serperSearchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperSearchResponse struct {
	Organic []serperOrganic `json:"organic"`
}

type serperOrganic struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

type serperScrapeRequest struct {
	URL             string `json:"url"`
	IncludeMarkdown bool   `json:"includeMarkdown"`
}

type serperScrapeResponse struct {
	Text     string `json:"text"`
	Markdown string `json:"markdown"`
}
