// Package providers holds the pieces shared by the HTTP clients for the
// speech, chat and embedding APIs.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrMissingAPIKey is returned before any request is made without a key
var ErrMissingAPIKey = errors.New("provider api key is not configured")

// Error is a non-2xx response from a provider
type Error struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
	Body       string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s api error: status %d type %s message %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s api error: status %d body %s", e.Provider, e.StatusCode, e.Body)
}

// Temporary reports whether retrying the same request may succeed
func (e *Error) Temporary() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return true
	}
	return e.StatusCode >= 500
}

// DecodeError builds an *Error from a failed response and closes its body
func DecodeError(provider string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()

	out := &Error{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		out.Message = apiErr.Error.Message
		out.Type = apiErr.Error.Type
	}
	return out
}

// StatusCode returns the provider status carried by err, or 0
func StatusCode(err error) int {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}

// NewHTTPClient returns a client with the given overall request timeout
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// RetryPolicy configures DoWithRetry
type RetryPolicy struct {
	MaxElapsed      time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries for up to two minutes
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxElapsed:      2 * time.Minute,
		InitialInterval: time.Second,
		MaxInterval:     20 * time.Second,
	}
}

// DoWithRetry POSTs a JSON body and decodes a JSON response into out,
// retrying on 429 and 5xx with exponential backoff. Other failures are
// returned at once.
func DoWithRetry(ctx context.Context, client *http.Client, policy RetryPolicy, provider, url, apiKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", provider, err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.InitialInterval
	bo.MaxInterval = policy.MaxInterval
	bo.MaxElapsedTime = policy.MaxElapsed

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create %s request: %w", provider, err))
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("%s request failed: %w", provider, err)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			apiErr := DecodeError(provider, resp)
			if apiErr.Temporary() {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}
		defer resp.Body.Close()

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s response: %w", provider, err))
		}
		return nil
	}

	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}
