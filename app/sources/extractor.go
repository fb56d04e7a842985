package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// ErrNoReferences is returned when every export representation of a
// sources document was tried and none yielded product references.
var ErrNoReferences = errors.New("no product references found in sources document")

var (
	documentIDPattern = regexp.MustCompile(`/document/d/(?:e/)?([a-zA-Z0-9_-]+)`)
	rawURLPattern     = regexp.MustCompile(`https?://[^\s"'<>\\)\]]+`)
	productPathASIN   = regexp.MustCompile(`/(?:dp|gp/product|gp/aw/d)/([A-Z0-9]{10})(?:[/?]|$)`)
	bareASINPattern   = regexp.MustCompile(`/([A-Z0-9]{10})(?:[/?]|$)`)
)

// ExtractReferences resolves a sources document to its stable id,
// tries export representations in priority order, and returns the
// deduplicated product reference URLs found in the first one that
// renders.
func (r *Resolver) ExtractReferences(ctx context.Context, docURL string) ([]string, error) {
	docID := documentID(docURL)
	if docID == "" {
		return nil, fmt.Errorf("could not extract document id from %s", docURL)
	}

	exports := []string{
		fmt.Sprintf("%s/document/d/%s/export?format=html", r.exportBase, docID),
		fmt.Sprintf("%s/document/d/%s/export?format=txt", r.exportBase, docID),
		fmt.Sprintf("%s/document/d/%s/pub", r.exportBase, docID),
	}

	var lastErr error
	for _, exportURL := range exports {
		body, err := r.fetchCached(ctx, exportURL)
		if err != nil {
			slog.Debug("Export representation unavailable", "url", exportURL, "error", err)
			lastErr = err
			continue
		}

		refs := scanProductLinks(body)
		if len(refs) > 0 {
			return refs, nil
		}
		lastErr = ErrNoReferences
	}

	if lastErr == nil {
		lastErr = ErrNoReferences
	}
	return nil, fmt.Errorf("all export representations failed for document %s: %w", docID, lastErr)
}

func documentID(docURL string) string {
	if m := documentIDPattern.FindStringSubmatch(docURL); m != nil {
		return m[1]
	}
	return ""
}

// scanProductLinks pulls every URL out of the rendered document,
// unwraps one layer of redirect wrappers, keeps the ones shaped like
// marketplace product links, and dedupes preserving order.
func scanProductLinks(content []byte) []string {
	raw := rawURLPattern.FindAllString(string(content), -1)

	var refs []string
	seen := make(map[string]struct{})
	for _, candidate := range raw {
		candidate = unwrapRedirect(candidate)
		if !isProductLink(candidate) {
			continue
		}

		key := dedupeKey(candidate)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		refs = append(refs, candidate)
	}

	return refs
}

// unwrapRedirect removes a single layer of known redirect wrappers:
// Google Docs wraps outbound links as google.com/url?q=<target>.
func unwrapRedirect(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	host := strings.ToLower(parsed.Hostname())
	if (host == "www.google.com" || host == "google.com") && parsed.Path == "/url" {
		if target := parsed.Query().Get("q"); target != "" {
			if unescaped, err := url.QueryUnescape(target); err == nil {
				return unescaped
			}
			return target
		}
	}

	return rawURL
}

func isProductLink(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "amzn.to" {
		return true
	}
	if !strings.Contains(host, "amazon.") {
		return false
	}

	if productPathASIN.MatchString(parsed.Path) {
		return true
	}
	return bareASINPattern.MatchString(parsed.Path)
}

// ASIN extracts the 10-character product code from a reference URL,
// or "" when none is present (e.g. short links).
func ASIN(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	if m := productPathASIN.FindStringSubmatch(parsed.Path); m != nil {
		return m[1]
	}
	if m := bareASINPattern.FindStringSubmatch(parsed.Path); m != nil {
		return m[1]
	}
	return ""
}

func dedupeKey(rawURL string) string {
	if asin := ASIN(rawURL); asin != "" {
		return asin
	}
	return rawURL
}
