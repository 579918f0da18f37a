// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil sends HTTP requests for the provider adapters and the
// completion client and turns every failure into a typed error.
package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/toolscout/internal/failure"
	"github.com/pdiddy/toolscout/pkg/types"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// maxSnippet caps how much of an error body ends up in an error message.
const maxSnippet = 200

// WrapFunc builds the caller's typed error from a kind, a message and
// the underlying cause.
type WrapFunc func(kind types.ErrorKind, msg string, err error) error

// ForProvider returns a WrapFunc producing *failure.ProviderError.
func ForProvider(name string) WrapFunc {
	return func(kind types.ErrorKind, msg string, err error) error {
		return failure.Provider(name, kind, msg, err)
	}
}

// ForLLM returns a WrapFunc producing *failure.LLMError.
func ForLLM() WrapFunc {
	return func(kind types.ErrorKind, msg string, err error) error {
		return failure.LLM(kind, msg, err)
	}
}

// StatusKind maps a non-2xx HTTP status to an ErrorKind.
//
//	429         rate_limited
//	401, 403    unauthorized
//	408, 504    timeout
//	other 5xx   network
//	other 4xx   invalid_response
func StatusKind(code int) types.ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return types.KindRateLimited
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return types.KindUnauthorized
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return types.KindTimeout
	case code >= 500:
		return types.KindNetwork
	default:
		return types.KindInvalidResponse
	}
}

// Do sends req and returns the body of a 2xx response. Transport errors
// are classified with failure.KindOf; non-2xx statuses with StatusKind.
func Do(ctx context.Context, client *http.Client, req *http.Request, wrap WrapFunc) ([]byte, error) {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return nil, wrap(failure.KindOf(err), "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, wrap(failure.KindOf(err), "reading response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if s := snippet(body); s != "" {
			msg += ": " + s
		}
		return nil, wrap(StatusKind(resp.StatusCode), msg, nil)
	}
	return body, nil
}

// DecodeJSON unmarshals body into out. A body that is not valid JSON for
// out is an invalid_response.
func DecodeJSON(body []byte, out any, wrap WrapFunc) error {
	if err := json.Unmarshal(body, out); err != nil {
		return wrap(types.KindInvalidResponse, "decoding response", err)
	}
	return nil
}

// NewJSONRequest builds a request with a JSON-encoded body and the usual
// headers set.
func NewJSONRequest(ctx context.Context, method, url string, payload any, userAgent string) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = strings.NewReader(string(data))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return req, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxSnippet {
		s = strings.ToValidUTF8(s[:maxSnippet], "") + "..."
	}
	return s
}
