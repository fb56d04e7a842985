package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"bookscout/app/fetchcache"
	"bookscout/app/retry"
	"bookscout/app/urlguard"
)

// ErrNoSourceDocument is the expected outcome when an episode page has
// no linked sources document yet. Routed through the scheduling state
// machine, not treated as a failure.
var ErrNoSourceDocument = errors.New("no sources document linked on episode page")

var fetchRetry = retry.Policy{
	MaxAttempts: 3,
	Backoff:     retry.ExpBackoff(1*time.Second, 8*time.Second),
}

// Resolver locates an episode's external sources document and extracts
// candidate product references from it.
type Resolver struct {
	fetcher    *urlguard.Fetcher
	cache      *fetchcache.Cache
	exportBase string
}

func NewResolver(fetcher *urlguard.Fetcher) *Resolver {
	return &Resolver{
		fetcher:    fetcher,
		cache:      fetchcache.New(10 * time.Minute),
		exportBase: "https://docs.google.com",
	}
}

// SetExportBase overrides the document-export endpoint. Used by tests
// to point at a local server.
func (r *Resolver) SetExportBase(base string) {
	r.exportBase = strings.TrimRight(base, "/")
}

// FindSourceDocument fetches the episode page through the guard and
// scans it for a link to a known document host. Anchors textually
// associated with a "sources" label win over any other document link
// on the page.
func (r *Resolver) FindSourceDocument(ctx context.Context, episodeURL string) (string, error) {
	body, err := r.fetchCached(ctx, episodeURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch episode page: %w", err)
	}

	docURL := findDocumentLink(body)
	if docURL == "" {
		return "", ErrNoSourceDocument
	}

	return docURL, nil
}

// findDocumentLink scans anchor elements for document-host links,
// preferring ones labeled as sources.
func findDocumentLink(html []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}

	var labeled, first string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !isDocumentHost(href) {
			return
		}

		if first == "" {
			first = href
		}

		label := strings.ToLower(sel.Text())
		if label == "" {
			label = strings.ToLower(sel.Parent().Text())
		}
		if labeled == "" && strings.Contains(label, "source") {
			labeled = href
		}
	})

	if labeled != "" {
		return labeled
	}
	return first
}

func isDocumentHost(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	return host == "docs.google.com" && strings.HasPrefix(parsed.Path, "/document/")
}

func (r *Resolver) fetchCached(ctx context.Context, rawURL string) ([]byte, error) {
	if cached, ok := r.cache.Get(rawURL); ok {
		slog.Debug("Fetch served from cache", "url", rawURL)
		return cached, nil
	}

	// Guard rejections fail closed immediately; the input itself is
	// the problem, so retrying cannot help.
	if validated := r.fetcher.Guard().Validate(rawURL); !validated.Valid {
		return nil, fmt.Errorf("URL rejected by guard: %s", validated.Reason)
	}

	var body []byte
	err := retry.Do(ctx, fetchRetry, func(ctx context.Context) error {
		resp, err := r.fetcher.SafeFetch(ctx, rawURL)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.cache.Set(rawURL, body)
	return body, nil
}
