package workers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/killallgit/testimony-api/pkg/providers"
)

// RetryPolicy decides whether a failed transcription is tried again
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy retries three times, waiting 60s, 120s then 180s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 60 * time.Second}
}

// Decide returns the delay before the next attempt and whether there is
// one. retries is how many retries have already been scheduled.
func (p RetryPolicy) Decide(retries int, err error) (time.Duration, bool) {
	if err == nil || !IsTransient(err) {
		return 0, false
	}
	if retries >= p.MaxRetries {
		return 0, false
	}
	return p.BaseDelay * time.Duration(retries+1), true
}

var transientKeywords = []string{
	"rate limit",
	"rate_limit",
	"ratelimit",
	"timeout",
	"timed out",
	"too many requests",
}

// IsTransient reports whether err is worth retrying: rate limiting and
// timeouts, whether signalled by status code, deadline or message text.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	switch providers.StatusCode(err) {
	case http.StatusTooManyRequests, http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range transientKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// errorCode gives a short machine readable label for a failure
func errorCode(err error) string {
	if status := providers.StatusCode(err); status != 0 {
		return "http_" + strconv.Itoa(status)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "rate_limit"), strings.Contains(msg, "too many requests"):
		return "rate_limit"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return "timeout"
	}
	return "error"
}
