// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"io"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pdiddy/toolscout/internal/cache"
	"github.com/pdiddy/toolscout/internal/llm"
	"github.com/pdiddy/toolscout/internal/provider"
	"github.com/pdiddy/toolscout/internal/retry"
	"github.com/pdiddy/toolscout/internal/search"
	"github.com/pdiddy/toolscout/internal/workflow"
	"github.com/pdiddy/toolscout/pkg/types"
)

// pipeline holds the wired components for one process.
type pipeline struct {
	strategy *search.Strategy
	machine  *workflow.Machine
	rdb      *redis.Client
}

func (p *pipeline) Close() error {
	if p.rdb != nil {
		return p.rdb.Close()
	}
	return nil
}

// newStrategy builds the provider tiers: Firecrawl first, Serper as the
// fallback when its key is set, each optionally behind the Redis cache.
func newStrategy(ctx context.Context, cfg types.Config, logger *zap.Logger) (*search.Strategy, *redis.Client, error) {
	tiers := []provider.Provider{provider.NewFirecrawl(cfg.Search)}
	if cfg.Search.SerperAPIKey != "" {
		tiers = append(tiers, provider.NewSerper(cfg.Search))
	} else if cfg.Search.EnableFallback {
		logger.Info("serper key not set, fallback search tier disabled")
	}

	var rdb *redis.Client
	if cfg.Cache.Enabled {
		var err error
		rdb, err = cache.Connect(ctx, cfg.Cache)
		if err != nil {
			return nil, nil, err
		}
		for i, p := range tiers {
			tiers[i] = cache.Wrap(p, rdb, cfg.Cache.TTL, logger)
		}
		logger.Info("result cache enabled", zap.Duration("ttl", cfg.Cache.TTL))
	}

	policy := retry.NewPolicy(cfg.Retry, logger)
	return search.New(tiers, cfg.Search, policy, logger), rdb, nil
}

// newPipeline wires search, the completion client and the workflow
// machine. progress receives stage lines.
func newPipeline(ctx context.Context, cfg types.Config, progress io.Writer, logger *zap.Logger) (*pipeline, error) {
	strategy, rdb, err := newStrategy(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	completer := llm.NewOpenAI(cfg.LLM, cfg.Search.Timeout, cfg.Search.UserAgent)
	machine := workflow.New(workflow.Deps{
		Search:   strategy,
		LLM:      completer,
		Retry:    retry.NewPolicy(cfg.Retry, logger),
		Progress: progress,
	}, cfg.Workflow, logger)

	return &pipeline{strategy: strategy, machine: machine, rdb: rdb}, nil
}
