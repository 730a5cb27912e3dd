package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pithecene-io/bundlesync/iox"
)

// HTTPConfig configures an HTTPFetcher.
type HTTPConfig struct {
	// BaseURL is the remote content root (required).
	BaseURL string
	// Headers are added to every request. This is the hook for
	// authorization headers; none are required by default.
	Headers map[string]string
	// Timeout bounds each request (default 15s).
	Timeout time.Duration
}

// HTTPFetcher fetches objects with GET {BaseURL}/{name}.
type HTTPFetcher struct {
	config HTTPConfig
	client *http.Client
}

// NewHTTPFetcher creates an HTTP fetcher. Returns an error if BaseURL is empty.
func NewHTTPFetcher(cfg HTTPConfig) (*HTTPFetcher, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("http fetcher requires a base URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &HTTPFetcher{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// URL returns the request URL for name.
func (f *HTTPFetcher) URL(name string) string {
	return joinKey(f.config.BaseURL, name)
}

// Fetch performs a single GET and returns the body on 2xx.
func (f *HTTPFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	url := f.URL(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewTransportError(ErrUnknown, "fetch", name, fmt.Errorf("create request: %w", err))
	}
	for k, v := range f.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, NewTransportError(Classify(err), "fetch", name, err)
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain body to allow connection reuse
		_, _ = io.Copy(io.Discard, resp.Body)
		statusErr := &StatusError{Code: resp.StatusCode}
		return nil, NewTransportError(kindForStatus(resp.StatusCode), "fetch", name, statusErr)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTransportError(Classify(err), "read", name, err)
	}
	return data, nil
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

var _ Fetcher = (*HTTPFetcher)(nil)
