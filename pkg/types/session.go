// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Stage is a state of the research workflow.
type Stage string

const (
	StageStarted      Stage = "started"
	StageDiscovering  Stage = "discovering"
	StageResearching  Stage = "researching"
	StageAnalyzing    Stage = "analyzing"
	StageRecommending Stage = "recommending"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// ErrorKind names a failure category across providers, the completion
// service, and the workflow.
type ErrorKind string

const (
	// Provider and completion-service kinds.
	KindRateLimited     ErrorKind = "rate_limited"
	KindTimeout         ErrorKind = "timeout"
	KindNetwork         ErrorKind = "network"
	KindInvalidResponse ErrorKind = "invalid_response"
	KindUnauthorized    ErrorKind = "unauthorized"
	KindInvalidOutput   ErrorKind = "invalid_output"

	// KindNotFound marks a candidate whose research search found no page.
	KindNotFound ErrorKind = "not_found"

	// Query handling kinds.
	KindClassification  ErrorKind = "classification"
	KindQueryValidation ErrorKind = "query_validation"

	// Workflow kinds.
	KindNoCandidatesFound   ErrorKind = "no_candidates_found"
	KindAllCandidatesFailed ErrorKind = "all_candidates_failed"
	KindSessionTimeout      ErrorKind = "session_timeout"
)

// ErrorRecord describes one failure observed during a session. Records are
// appended and never removed.
type ErrorRecord struct {
	Stage   string    `json:"stage" yaml:"stage"`
	Kind    ErrorKind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`

	// Subject identifies what failed: a candidate name, URL, or query.
	Subject string `json:"subject,omitempty" yaml:"subject,omitempty"`

	// Retried is the number of re-attempts made after the first call.
	Retried int `json:"retried" yaml:"retried"`

	// Recovered is true when a later attempt or a degraded path succeeded.
	Recovered bool `json:"recovered" yaml:"recovered"`
}

// Recommendation is the final output of the recommending stage.
type Recommendation struct {
	Text string `json:"text" yaml:"text"`

	// Ranking lists tool names, best first.
	Ranking []string `json:"ranking" yaml:"ranking"`

	// Degraded is set when the ranking came from the rule-based fallback
	// instead of the completion service.
	Degraded bool `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}

// Report is the serializable outcome of a session, successful or not.
type Report struct {
	SessionID string      `json:"session_id" yaml:"session_id"`
	Query     string      `json:"query" yaml:"query"`
	Intent    QueryIntent `json:"intent" yaml:"intent"`

	// Stage is the final stage: completed or failed.
	Stage Stage `json:"stage" yaml:"stage"`

	// FailedIn is the stage that was active when the session failed.
	FailedIn Stage `json:"failed_in,omitempty" yaml:"failed_in,omitempty"`

	// FailureKind is set when Stage is failed.
	FailureKind ErrorKind `json:"failure_kind,omitempty" yaml:"failure_kind,omitempty"`

	Queries        []SearchQuery   `json:"queries" yaml:"queries"`
	Candidates     []ToolCandidate `json:"candidates" yaml:"candidates"`
	Analyses       []ToolAnalysis  `json:"analyses" yaml:"analyses"`
	Recommendation *Recommendation `json:"recommendation,omitempty" yaml:"recommendation,omitempty"`
	Errors         []ErrorRecord   `json:"errors" yaml:"errors"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// Failed reports whether the session ended in the failed stage.
func (r Report) Failed() bool {
	return r.Stage == StageFailed
}
