// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package failure defines the typed errors shared by providers, the
// completion service, the query builder, and the research workflow, and
// decides which of them are worth retrying.
package failure

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/pdiddy/toolscout/pkg/types"
)

// ProviderError is returned by search and scrape adapters.
type ProviderError struct {
	Provider string
	Kind     types.ErrorKind
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// LLMError is returned by the completion service client.
type LLMError struct {
	Kind    types.ErrorKind
	Message string
	Err     error
}

func (e *LLMError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("llm: %s", e.Kind)
	}
	return fmt.Sprintf("llm: %s: %s", e.Kind, e.Message)
}

func (e *LLMError) Unwrap() error { return e.Err }

// WorkflowError ends a research session.
type WorkflowError struct {
	Kind    types.ErrorKind
	Stage   types.Stage
	Message string
	Err     error
}

func (e *WorkflowError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("workflow %s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("workflow %s: %s: %s", e.Stage, e.Kind, e.Message)
}

func (e *WorkflowError) Unwrap() error { return e.Err }

// QueryValidationError is returned when no built query, not even the raw
// fallback, survives validation.
type QueryValidationError struct {
	Query  string
	Reason string
}

func (e *QueryValidationError) Error() string {
	return fmt.Sprintf("query %q rejected: %s", e.Query, e.Reason)
}

// ClassificationError wraps an unexpected failure inside the classifier.
type ClassificationError struct {
	Query string
	Cause any
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classifying %q: %v", e.Query, e.Cause)
}

// Provider constructs a ProviderError.
func Provider(provider string, kind types.ErrorKind, msg string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Message: msg, Err: err}
}

// LLM constructs an LLMError.
func LLM(kind types.ErrorKind, msg string, err error) *LLMError {
	return &LLMError{Kind: kind, Message: msg, Err: err}
}

// KindOf extracts the ErrorKind carried by err. Context deadlines map to
// KindTimeout and network errors to KindNetwork; anything else unknown is
// reported as KindInvalidResponse.
func KindOf(err error) types.ErrorKind {
	if err == nil {
		return ""
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	var le *LLMError
	if errors.As(err, &le) {
		return le.Kind
	}
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Kind
	}
	var qe *QueryValidationError
	if errors.As(err, &qe) {
		return types.KindQueryValidation
	}
	var ce *ClassificationError
	if errors.As(err, &ce) {
		return types.KindClassification
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return types.KindTimeout
		}
		return types.KindNetwork
	}
	return types.KindInvalidResponse
}

// Retryable reports whether another attempt may succeed. Rate limits,
// timeouts and transient network failures are retryable; authorization
// failures and malformed responses are not. Cancellation of the caller's
// context is never retried.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch KindOf(err) {
	case types.KindRateLimited, types.KindTimeout, types.KindNetwork:
		return true
	default:
		return false
	}
}

// Fatal reports whether err must end the whole session regardless of which
// candidate or stage produced it.
func Fatal(err error) bool {
	return KindOf(err) == types.KindUnauthorized
}
