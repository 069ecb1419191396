package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrReadOnly is returned by stores that cannot accept writes
var ErrReadOnly = errors.New("storage: read-only store")

// HTTPOptions configures HTTPStore
type HTTPOptions struct {
	MaxSize   int64 // 0 = no limit
	Timeout   time.Duration
	UserAgent string
}

// DefaultHTTPOptions returns defaults suitable for fetching sermon length audio
func DefaultHTTPOptions() HTTPOptions {
	return HTTPOptions{
		MaxSize:   200 * 1024 * 1024,
		Timeout:   5 * time.Minute,
		UserAgent: "TestimonyAPI/1.0",
	}
}

// HTTPStore reads audio published at http(s) URLs. Rows imported from
// older systems point at audio the service never uploaded itself.
type HTTPStore struct {
	client  *http.Client
	options HTTPOptions
}

// NewHTTPStore creates a read-only store for http and https locators
func NewHTTPStore(options HTTPOptions) *HTTPStore {
	return &HTTPStore{
		client: &http.Client{
			Timeout: options.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				DisableCompression:  true,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		options: options,
	}
}

func (h *HTTPStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return "", ErrReadOnly
}

func (h *HTTPStore) Get(ctx context.Context, locator string) ([]byte, error) {
	resp, err := h.do(ctx, http.MethodGet, locator)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if h.options.MaxSize > 0 && resp.ContentLength > h.options.MaxSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", resp.ContentLength, h.options.MaxSize)
	}

	var reader io.Reader = resp.Body
	if h.options.MaxSize > 0 {
		reader = io.LimitReader(resp.Body, h.options.MaxSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	if h.options.MaxSize > 0 && int64(len(data)) > h.options.MaxSize {
		return nil, fmt.Errorf("file too large: more than %d bytes", h.options.MaxSize)
	}
	return data, nil
}

func (h *HTTPStore) Delete(ctx context.Context, locator string) error {
	return ErrReadOnly
}

func (h *HTTPStore) Exists(ctx context.Context, locator string) (bool, error) {
	resp, err := h.do(ctx, http.MethodHead, locator)
	if err != nil {
		if errors.Is(err, ErrNoObject) {
			return false, nil
		}
		return false, err
	}
	resp.Body.Close()
	return true, nil
}

func (h *HTTPStore) do(ctx context.Context, method, locator string) (*http.Response, error) {
	scheme := Scheme(locator)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLocator, locator)
	}

	req, err := http.NewRequestWithContext(ctx, method, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", h.options.UserAgent)
	req.Header.Set("Accept", "audio/*,*/*")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		resp.Body.Close()
		return nil, ErrNoObject
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent:
		resp.Body.Close()
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !isAudioContentType(ct) {
		resp.Body.Close()
		return nil, fmt.Errorf("invalid content type: %s", ct)
	}
	return resp, nil
}

func isAudioContentType(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.HasPrefix(contentType, "audio/") ||
		strings.HasPrefix(contentType, "video/") ||
		strings.HasPrefix(contentType, "application/octet-stream")
}
