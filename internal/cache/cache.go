// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache keeps provider search and scrape results in Redis so
// repeated sessions over the same queries do not spend provider quota.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pdiddy/toolscout/internal/metrics"
	"github.com/pdiddy/toolscout/internal/provider"
	"github.com/pdiddy/toolscout/pkg/types"
)

const keyPrefix = "toolscout:"

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, cfg types.CacheConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return rdb, nil
}

// Provider is a read-through cache in front of another provider. Only
// successful, non-empty results are stored. Redis failures are logged and
// the call goes straight to the wrapped provider.
type Provider struct {
	next   provider.Provider
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

// Wrap returns next behind a Redis cache with the given entry TTL.
func Wrap(next provider.Provider, rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

// Name returns the wrapped provider's name so results keep their origin.
func (p *Provider) Name() string { return p.next.Name() }

// Search serves q from the cache when possible.
func (p *Provider) Search(ctx context.Context, q types.SearchQuery, limit int) ([]types.SearchResult, error) {
	key := p.key("search", fmt.Sprintf("%d:%s", limit, q.Text))

	var cached []types.SearchResult
	if p.get(ctx, "search", key, &cached) {
		return cached, nil
	}

	results, err := p.next.Search(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		p.set(ctx, "search", key, results)
	}
	return results, nil
}

// Scrape serves url from the cache when possible.
func (p *Provider) Scrape(ctx context.Context, url string) (string, error) {
	key := p.key("scrape", url)

	var cached string
	if p.get(ctx, "scrape", key, &cached) {
		return cached, nil
	}

	content, err := p.next.Scrape(ctx, url)
	if err != nil {
		return "", err
	}
	if content != "" {
		p.set(ctx, "scrape", key, content)
	}
	return content, nil
}

func (p *Provider) key(op, input string) string {
	sum := sha256.Sum256([]byte(input))
	return keyPrefix + op + ":" + p.next.Name() + ":" + hex.EncodeToString(sum[:])
}

func (p *Provider) get(ctx context.Context, op, key string, out any) bool {
	data, err := p.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.CacheLookups.WithLabelValues(op, "miss").Inc()
		return false
	case err != nil:
		metrics.CacheLookups.WithLabelValues(op, "error").Inc()
		p.logger.Warn("cache read failed", zap.String("provider", p.Name()), zap.String("op", op), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		metrics.CacheLookups.WithLabelValues(op, "error").Inc()
		p.logger.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	metrics.CacheLookups.WithLabelValues(op, "hit").Inc()
	return true
}

func (p *Provider) set(ctx context.Context, op, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := p.rdb.Set(ctx, key, data, p.ttl).Err(); err != nil {
		p.logger.Warn("cache write failed", zap.String("provider", p.Name()), zap.String("op", op), zap.Error(err))
	}
}
