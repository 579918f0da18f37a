// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry wraps calls to search providers and the completion service
// with bounded attempts and exponential backoff with jitter. Only
// rate-limit, timeout and transient network failures are retried; every
// other failure returns immediately.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/toolscout/internal/failure"
	"github.com/pdiddy/toolscout/internal/metrics"
	"github.com/pdiddy/toolscout/pkg/types"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 30 * time.Second
)

// Policy bounds the attempts made for one external call.
type Policy struct {
	// MaxAttempts includes the first call. Zero uses the default (3).
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Logger      *zap.Logger
}

// NewPolicy builds a Policy from configuration.
func NewPolicy(cfg types.RetryConfig, logger *zap.Logger) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		Logger:      logger,
	}
}

// Op describes the call being retried, for logging and error records.
type Op struct {
	// Stage is the workflow stage the call belongs to.
	Stage string
	// Name identifies the call, e.g. "firecrawl.search".
	Name string
	// Subject is the query, URL, or candidate the call is about.
	Subject string
}

// Outcome reports what happened across all attempts.
type Outcome struct {
	// Retries is the number of attempts after the first.
	Retries int

	// Record is nil when the first attempt succeeded. It is set with
	// Recovered=true when a retry succeeded, and with Recovered=false when
	// the call ultimately failed.
	Record *types.ErrorRecord
}

// Do runs fn until it succeeds, fails with a non-retryable error, the
// attempts are exhausted, or ctx is done. The returned error wraps the last
// failure so its kind stays visible to errors.As.
func Do[T any](ctx context.Context, p Policy, op Op, fn func(context.Context) (T, error)) (T, Outcome, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		zero     T
		lastKind types.ErrorKind
	)
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			out := Outcome{Retries: attempt - 1}
			if attempt > 1 {
				out.Record = &types.ErrorRecord{
					Stage:     op.Stage,
					Kind:      lastKind,
					Message:   fmt.Sprintf("%s recovered after %d retries", op.Name, attempt-1),
					Subject:   op.Subject,
					Retried:   attempt - 1,
					Recovered: true,
				}
			}
			return v, out, nil
		}
		lastKind = failure.KindOf(err)

		if !failure.Retryable(err) || ctx.Err() != nil {
			return zero, failed(op, err, attempt-1), err
		}
		if attempt >= maxAttempts {
			err = fmt.Errorf("%s failed after %d attempts: %w", op.Name, attempt, err)
			return zero, failed(op, err, attempt-1), err
		}

		backoff := p.backoff(attempt)
		logger.Warn("retrying external call",
			zap.String("op", op.Name),
			zap.String("subject", op.Subject),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		metrics.Retries.WithLabelValues(op.Name).Inc()

		select {
		case <-ctx.Done():
			err = fmt.Errorf("%s interrupted during backoff: %w", op.Name, ctx.Err())
			return zero, failed(op, err, attempt-1), err
		case <-time.After(backoff):
		}
	}
}

// failed builds the Outcome for a call that did not succeed.
func failed(op Op, err error, retries int) Outcome {
	return Outcome{
		Retries: retries,
		Record: &types.ErrorRecord{
			Stage:   op.Stage,
			Kind:    failure.KindOf(err),
			Message: err.Error(),
			Subject: op.Subject,
			Retried: retries,
		},
	}
}

// backoff returns the delay before attempt n+1: BaseDelay doubled n-1
// times, capped at MaxDelay, scaled by a jitter factor in [0.5, 1.0).
func (p Policy) backoff(n int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}
	d := time.Duration(math.Pow(2, float64(n-1))) * base
	if d > maxDelay || d <= 0 {
		d = maxDelay
	}
	return time.Duration(float64(d) * (0.5 + rand.Float64()/2))
}
