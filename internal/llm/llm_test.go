// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/toolscout/internal/failure"
	"github.com/pdiddy/toolscout/pkg/types"
)

// --- mock completer ---

type stubCompleter struct {
	text string
	err  error
	last Request
}

func (s *stubCompleter) Complete(_ context.Context, req Request) (string, error) {
	s.last = req
	return s.text, s.err
}

func newTestClient(t *testing.T, h http.HandlerFunc) *OpenAI {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return &OpenAI{
		APIKey:      "sk-test",
		Model:       "gpt-4o-mini",
		Temperature: 0.1,
		MaxTokens:   2000,
		BaseURL:     ts.URL + "/v1/",
		Client:      ts.Client(),
	}
}

func TestOpenAIComplete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body.Model)
		assert.InDelta(t, 0.1, body.Temperature, 1e-9)
		assert.Equal(t, 2000, body.MaxTokens)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "user", body.Messages[1].Role)
		require.NotNil(t, body.ResponseFormat)
		assert.Equal(t, "json_schema", body.ResponseFormat.Type)
		assert.Equal(t, "tool_analysis", body.ResponseFormat.JSONSchema.Name)
		assert.True(t, body.ResponseFormat.JSONSchema.Strict)

		w.Write([]byte(`{"choices":[{"message":{"content":"{\"pricing_model\":\"free\"}"},"finish_reason":"stop"}]}`))
	})

	got, err := c.Complete(context.Background(), AnalysisRequest("mlflow", "MLflow is open source", 2500))
	require.NoError(t, err)
	assert.Equal(t, `{"pricing_model":"free"}`, got)
}

func TestOpenAICompleteFreeText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Nil(t, body.ResponseFormat)
		require.Len(t, body.Messages, 1)
		w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	})

	got, err := c.Complete(context.Background(), Request{User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestOpenAICompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   types.ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, types.KindRateLimited},
		{"bad key", http.StatusUnauthorized, `{"error":{"message":"invalid key"}}`, types.KindUnauthorized},
		{"no choices", http.StatusOK, `{"choices":[]}`, types.KindInvalidOutput},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`, types.KindInvalidOutput},
		{"refusal", http.StatusOK, `{"choices":[{"message":{"refusal":"no"}}]}`, types.KindInvalidOutput},
		{"not json", http.StatusOK, `<html>`, types.KindInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.Complete(context.Background(), Request{User: "hi"})
			var le *failure.LLMError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.want, le.Kind)
		})
	}
}

func TestOpenAICompleteTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, Request{User: "hi"})
	assert.Equal(t, types.KindTimeout, failure.KindOf(err))
	assert.True(t, failure.Retryable(err))
}

func TestNewOpenAI(t *testing.T) {
	c := NewOpenAI(types.AIConfig{Model: "m", Temperature: 0.3, MaxTokens: 10, APIKey: "k"}, time.Second, "test/0.1")
	assert.Equal(t, "m", c.Model)
	assert.Equal(t, "k", c.APIKey)
	assert.Equal(t, time.Second, c.Client.Timeout)
}

// --- CompleteJSON ---

func TestCompleteJSON(t *testing.T) {
	stub := &stubCompleter{text: "```json\n{\"tools\":[{\"name\":\" ZenML \",\"confidence\":1.7},{\"name\":\"\"}]}\n```"}
	got, err := CompleteJSON(context.Background(), stub, ExtractionRequest("mlflow alternatives", "mlflow", nil), ValidateExtraction)
	require.NoError(t, err)
	assert.Equal(t, []ExtractedTool{{Name: "ZenML", Confidence: 1}}, got.Tools)
	assert.Equal(t, PurposeExtraction, stub.last.Purpose)
}

func TestCompleteJSONInvalidOutput(t *testing.T) {
	stub := &stubCompleter{text: "I think the answer is MLflow"}
	_, err := CompleteJSON[Analysis](context.Background(), stub, Request{}, nil)
	assert.Equal(t, types.KindInvalidOutput, failure.KindOf(err))
	assert.False(t, failure.Retryable(err))

	stub.text = `{"pricing_model":"cheap"}`
	_, err = CompleteJSON(context.Background(), stub, Request{}, ValidateAnalysis)
	assert.Equal(t, types.KindInvalidOutput, failure.KindOf(err))
}

func TestCompleteJSONPassesThroughErrors(t *testing.T) {
	stub := &stubCompleter{err: failure.LLM(types.KindRateLimited, "HTTP 429", nil)}
	_, err := CompleteJSON[Analysis](context.Background(), stub, Request{}, nil)
	assert.Equal(t, types.KindRateLimited, failure.KindOf(err))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripFences(` {"a":1} `))
}

var (
	_ Completer = (*OpenAI)(nil)
	_ Completer = (*stubCompleter)(nil)
)
