package workers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/killallgit/testimony-api/pkg/providers"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", fmt.Errorf("transcribe: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, false},
		{"429", &providers.Error{StatusCode: http.StatusTooManyRequests}, true},
		{"408", &providers.Error{StatusCode: http.StatusRequestTimeout}, true},
		{"504", &providers.Error{StatusCode: http.StatusGatewayTimeout}, true},
		{"401", &providers.Error{StatusCode: http.StatusUnauthorized, Message: "bad key"}, false},
		{"rate limit text", errors.New("Rate limit reached for whisper-1"), true},
		{"rate_limit code", errors.New("rate_limit_exceeded"), true},
		{"timeout text", errors.New("i/o timeout"), true},
		{"timed out", errors.New("request timed out"), true},
		{"too many requests", errors.New("Too Many Requests"), true},
		{"decode failure", errors.New("could not decode audio"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestRetryPolicyDecide(t *testing.T) {
	p := DefaultRetryPolicy()
	timeout := errors.New("timeout")

	for retries, want := range []time.Duration{60 * time.Second, 120 * time.Second, 180 * time.Second} {
		delay, ok := p.Decide(retries, timeout)
		assert.True(t, ok)
		assert.Equal(t, want, delay)
	}

	_, ok := p.Decide(3, timeout)
	assert.False(t, ok, "retries exhausted")

	_, ok = p.Decide(0, errors.New("invalid file format"))
	assert.False(t, ok, "non-transient errors are not retried")
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "http_429", errorCode(&providers.Error{StatusCode: 429}))
	assert.Equal(t, "timeout", errorCode(context.DeadlineExceeded))
}
