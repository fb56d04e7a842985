package books

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"bookscout/app/retry"
	"bookscout/app/sources"
	"bookscout/app/urlguard"
)

var fetchRetry = retry.Policy{
	MaxAttempts: 3,
	Backoff:     retry.ExpBackoff(1*time.Second, 8*time.Second),
}

// Resolver turns candidate product links into bibliographic metadata
// via a tiered fallback chain: catalog API first, product-page scrape
// second, nothing third.
type Resolver struct {
	fetcher    *urlguard.Fetcher
	openLib    *openLibraryClient
	BatchSize  int
	ItemPause  time.Duration
	GroupPause time.Duration
}

func NewResolver(fetcher *urlguard.Fetcher) *Resolver {
	return &Resolver{
		fetcher:    fetcher,
		openLib:    &openLibraryClient{fetcher: fetcher, baseURL: defaultOpenLibraryBase},
		BatchSize:  3,
		ItemPause:  1 * time.Second,
		GroupPause: 5 * time.Second,
	}
}

// SetCatalogAPIBase overrides the bibliographic API endpoint. Used by
// tests to point at a local server.
func (r *Resolver) SetCatalogAPIBase(base string) {
	r.openLib.baseURL = strings.TrimRight(base, "/")
}

// Resolve runs the fallback chain for one candidate link. A nil
// metadata with nil error means the candidate was discarded (no usable
// title anywhere, or it failed the validation gate).
func (r *Resolver) Resolve(ctx context.Context, link string) (*Metadata, error) {
	asin := sources.ASIN(link)

	meta := r.resolveFromCatalogAPI(ctx, link, asin)
	if meta == nil {
		meta = r.resolveFromPageScrape(ctx, link)
	}
	if meta == nil {
		return nil, nil
	}

	if reason := validateMetadata(meta); reason != "" {
		slog.Debug("Resolved metadata rejected by validation gate", "link", link, "reason", reason)
		return nil, fmt.Errorf("metadata for %s rejected: %s", link, reason)
	}

	// Cover resolution runs independently of title/author resolution.
	if meta.CoverURL == "" && asin != "" {
		meta.CoverURL = r.probeCover(ctx, asin)
	}

	return meta, nil
}

func (r *Resolver) resolveFromCatalogAPI(ctx context.Context, link, asin string) *Metadata {
	titleGuess := titleFromSlug(link)

	var docs []openLibraryDoc
	var err error

	if asin != "" {
		docs, err = r.openLib.searchByISBN(ctx, asin)
		if err != nil {
			slog.Debug("Catalog API identifier lookup failed", "asin", asin, "error", err)
		}
	}

	if len(docs) == 0 && titleGuess != "" {
		docs, err = r.openLib.searchByTitle(ctx, titleGuess)
		if err != nil {
			slog.Debug("Catalog API title lookup failed", "title", titleGuess, "error", err)
		}
	}

	doc := pickDoc(docs, titleGuess)
	if doc == nil || strings.TrimSpace(doc.Title) == "" {
		return nil
	}

	meta := &Metadata{
		Title:      doc.Title,
		CoverURL:   doc.coverURL(),
		Subjects:   doc.Subject,
		SourceTier: TierOpenLibrary,
	}
	if len(doc.AuthorName) > 0 {
		meta.Author = strings.Join(doc.AuthorName, ", ")
	}

	return meta
}

func (r *Resolver) resolveFromPageScrape(ctx context.Context, link string) *Metadata {
	// Guard rejections fail closed immediately; retrying cannot help.
	if validated := r.fetcher.Guard().Validate(link); !validated.Valid {
		slog.Debug("Product page rejected by guard", "link", link, "reason", validated.Reason)
		return nil
	}

	var body []byte
	err := retry.Do(ctx, fetchRetry, func(ctx context.Context) error {
		resp, err := r.fetcher.SafeFetch(ctx, link)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read product page: %w", err)
		}
		return nil
	})
	if err != nil {
		slog.Debug("Product page fetch failed", "link", link, "error", err)
		return nil
	}

	return scrapeProductPage(body)
}

// scrapeProductPage reads title/author out of structured product page
// fields, falling back to Open Graph metadata.
func scrapeProductPage(html []byte) *Metadata {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}

	title := strings.TrimSpace(doc.Find("#productTitle").First().Text())
	if title == "" {
		title, _ = doc.Find(`meta[property="og:title"]`).First().Attr("content")
		title = strings.TrimSpace(title)
	}
	if title == "" {
		return nil
	}

	author := strings.TrimSpace(doc.Find("#bylineInfo .author a").First().Text())
	if author == "" {
		author = strings.TrimSpace(doc.Find(".contributorNameID").First().Text())
	}

	return &Metadata{
		Title:      title,
		Author:     author,
		SourceTier: TierPageScrape,
	}
}

// probeCover checks a small set of predictable image-CDN URL patterns
// derived from the product identifier. First existing image wins; ""
// means the caller should use a placeholder.
func (r *Resolver) probeCover(ctx context.Context, asin string) string {
	candidates := []string{
		fmt.Sprintf("https://images-na.ssl-images-amazon.com/images/P/%s.01.LZZZZZZZ.jpg", asin),
		fmt.Sprintf("https://m.media-amazon.com/images/P/%s.01._SCLZZZZZZZ_.jpg", asin),
	}

	for _, candidate := range candidates {
		if r.fetcher.Exists(ctx, candidate) {
			return candidate
		}
	}

	return ""
}

// titleFromSlug derives a title query from the human-readable slug
// segment of a product URL, e.g. /Widget-Makers-History/dp/0123456789.
func titleFromSlug(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}

	slug := segments[0]
	if slug == "dp" || slug == "gp" || sources.ASIN("/"+slug+"/") == slug {
		return ""
	}

	words := strings.Split(slug, "-")
	var kept []string
	for _, word := range words {
		if word == "" || looksLikeEdition(word) {
			continue
		}
		kept = append(kept, word)
	}

	return strings.Join(kept, " ")
}

func looksLikeEdition(word string) bool {
	switch strings.ToLower(word) {
	case "ebook", "dp", "audiobook", "paperback", "hardcover", "edition":
		return true
	}
	return false
}
