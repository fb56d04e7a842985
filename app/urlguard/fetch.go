package urlguard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const FetchTimeout = 30 * time.Second

// Fetcher issues guarded GET requests. The guard runs before any
// socket is opened; an invalid URL never reaches the network.
type Fetcher struct {
	guard     *Guard
	client    *http.Client
	userAgent string
}

func NewFetcher(guard *Guard, client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: FetchTimeout}
	}
	// Every redirect hop is validated like the initial URL, so an
	// allowlisted host cannot bounce the client to a blocked target.
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("stopped after %d redirects", len(via))
		}
		if validated := guard.Validate(req.URL.String()); !validated.Valid {
			return fmt.Errorf("redirect target rejected by guard: %s", validated.Reason)
		}
		return nil
	}
	return &Fetcher{
		guard:     guard,
		client:    client,
		userAgent: userAgent,
	}
}

func (f *Fetcher) Guard() *Guard {
	return f.guard
}

// SafeFetch validates the URL and performs a GET against the sanitized
// form. Callers own the response body.
func (f *Fetcher) SafeFetch(ctx context.Context, rawURL string) (*http.Response, error) {
	validated := f.guard.Validate(rawURL)
	if !validated.Valid {
		return nil, fmt.Errorf("URL rejected by guard: %s", validated.Reason)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
	resp, err := f.fetch(timeoutCtx, http.MethodGet, validated.Sanitized)
	if err != nil {
		cancel()
		return nil, err
	}

	// Tie the timeout to the body so callers can stream it.
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// Exists validates the URL and reports whether a HEAD request against
// it succeeds. Used for lightweight probes of predictable asset URLs.
func (f *Fetcher) Exists(ctx context.Context, rawURL string) bool {
	validated := f.guard.Validate(rawURL)
	if !validated.Valid {
		return false
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	resp, err := f.fetch(timeoutCtx, http.MethodHead, validated.Sanitized)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (f *Fetcher) fetch(ctx context.Context, method, sanitizedURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, sanitizedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", sanitizedURL, err)
	}

	return resp, nil
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	c.cancel()
	return c.ReadCloser.Close()
}
