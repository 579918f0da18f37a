// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is the client side of the completion service: a narrow
// Completer interface, an OpenAI-compatible chat completions backend, and
// typed, validated decoding of schema-constrained answers.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/toolscout/internal/failure"
	"github.com/pdiddy/toolscout/internal/httputil"
	"github.com/pdiddy/toolscout/internal/metrics"
	"github.com/pdiddy/toolscout/pkg/types"
)

// Schema is a named JSON Schema the answer must conform to.
type Schema struct {
	Name       string
	Definition map[string]any
}

// Request is one completion call. A nil Schema asks for free text.
type Request struct {
	// Purpose labels the call in metrics and logs, e.g. "analysis".
	Purpose string
	System  string
	User    string
	Schema  *Schema
}

// Completer sends a prompt to the completion service. Implementations
// return *failure.LLMError on failure and must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// chatCompletionsPath is appended to the configured base URL.
const chatCompletionsPath = "/chat/completions"

// openAIBaseURL is the default API root. Package-level var for test
// substitution.
var openAIBaseURL = "https://api.openai.com/v1"

// OpenAI calls an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string
	UserAgent   string
	Client      *http.Client
}

// NewOpenAI returns a client configured from cfg.
func NewOpenAI(cfg types.AIConfig, timeout time.Duration, userAgent string) *OpenAI {
	return &OpenAI{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		BaseURL:     cfg.BaseURL,
		UserAgent:   userAgent,
		Client:      &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete sends one chat completion request.
func (c *OpenAI) Complete(ctx context.Context, req Request) (text string, err error) {
	defer func() {
		metrics.LLMCalls.WithLabelValues(req.Purpose, metrics.Outcome(err)).Inc()
	}()

	body := chatRequest{
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.User})
	if req.Schema != nil {
		body.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchema{Name: req.Schema.Name, Schema: req.Schema.Definition, Strict: true},
		}
	}

	base := c.BaseURL
	if base == "" {
		base = openAIBaseURL
	}
	wrap := httputil.ForLLM()
	httpReq, err := httputil.NewJSONRequest(ctx, http.MethodPost, strings.TrimSuffix(base, "/")+chatCompletionsPath, body, c.UserAgent)
	if err != nil {
		return "", wrap(types.KindInvalidResponse, "building request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	data, err := httputil.Do(ctx, client, httpReq, wrap)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := httputil.DecodeJSON(data, &resp, wrap); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", failure.LLM(types.KindInvalidOutput, "no choices in response", nil)
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return "", failure.LLM(types.KindInvalidOutput, "model refused: "+msg.Refusal, nil)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return "", failure.LLM(types.KindInvalidOutput, "empty completion", nil)
	}
	return msg.Content, nil
}

// CompleteJSON calls c with a schema-constrained request and decodes the
// answer into T. Malformed JSON, or a value rejected by validate, is an
// LLMError of kind invalid_output.
func CompleteJSON[T any](ctx context.Context, c Completer, req Request, validate func(*T) error) (T, error) {
	var v T
	text, err := c.Complete(ctx, req)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &v); err != nil {
		return v, failure.LLM(types.KindInvalidOutput, "answer is not valid JSON", err)
	}
	if validate != nil {
		if err := validate(&v); err != nil {
			return v, failure.LLM(types.KindInvalidOutput, fmt.Sprintf("answer failed validation: %v", err), err)
		}
	}
	return v, nil
}

// stripFences removes a Markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
