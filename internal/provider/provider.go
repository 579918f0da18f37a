// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider adapts external web search and scrape APIs to a single
// Provider interface. Each adapter paces its own calls and returns
// *failure.ProviderError for every failure.
package provider

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/toolscout/internal/failure"
	"github.com/pdiddy/toolscout/internal/metrics"
	"github.com/pdiddy/toolscout/pkg/types"
)

// Provider is one search and scrape backend. Implementations must be safe
// for concurrent use.
type Provider interface {
	Name() string

	// Search returns at most limit results for q.
	Search(ctx context.Context, q types.SearchQuery, limit int) ([]types.SearchResult, error)

	// Scrape returns the page at url as Markdown or plain text. An empty
	// string with a nil error means the page had no usable content.
	Scrape(ctx context.Context, url string) (string, error)
}

// newLimiter returns a limiter for rps requests per second, or nil when
// pacing is disabled.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// wait blocks until lim admits one request. The limiter fails early when
// the context deadline would pass before a token frees up; both that and
// a context that ends while waiting are reported as a timeout.
func wait(ctx context.Context, lim *rate.Limiter, name string) error {
	if lim == nil {
		return nil
	}
	if err := lim.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return failure.Provider(name, types.KindTimeout, "waiting for rate limiter", err)
	}
	return nil
}

// observe records one call in the provider metrics.
func observe(name, op string, start time.Time, err error) {
	metrics.ProviderCalls.WithLabelValues(name, op, metrics.Outcome(err)).Inc()
	metrics.ProviderLatency.WithLabelValues(name, op).Observe(time.Since(start).Seconds())
}

func httpClient(cfg types.SearchConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}
