package sources

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"bookscout/app/urlguard"
)

func newTestResolver(handler http.Handler) (*Resolver, *httptest.Server) {
	server := httptest.NewServer(handler)

	policy := urlguard.DefaultPolicy()
	policy.AllowLoopback = true
	fetcher := urlguard.NewFetcher(urlguard.NewGuard(policy), server.Client(), "Bookscout-Test/1.0")

	resolver := NewResolver(fetcher)
	resolver.SetExportBase(server.URL)

	return resolver, server
}

func TestFindSourceDocument(t *testing.T) {
	resolver, server := newTestResolver(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body>
			<a href="https://docs.google.com/document/d/ep-sources/edit">Sources</a>
		</body></html>`)
	}))
	defer server.Close()

	docURL, err := resolver.FindSourceDocument(context.Background(), server.URL+"/episodes/42")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if docURL != "https://docs.google.com/document/d/ep-sources/edit" {
		t.Errorf("Expected sources document URL, got: %s", docURL)
	}
}

func TestFindSourceDocumentMissing(t *testing.T) {
	resolver, server := newTestResolver(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><p>No show notes yet.</p></body></html>`)
	}))
	defer server.Close()

	_, err := resolver.FindSourceDocument(context.Background(), server.URL+"/episodes/42")
	if !errors.Is(err, ErrNoSourceDocument) {
		t.Errorf("Expected ErrNoSourceDocument, got: %v", err)
	}
}

func TestFindSourceDocumentRejectedURL(t *testing.T) {
	requested := false
	resolver, server := newTestResolver(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = true
	}))
	defer server.Close()

	_, err := resolver.FindSourceDocument(context.Background(), "http://169.254.169.254/latest/meta-data/")
	if err == nil {
		t.Fatal("Expected error for metadata endpoint")
	}
	if requested {
		t.Error("Expected no request to be made for a rejected URL")
	}
}

func TestFetchCachedServesRepeatsFromCache(t *testing.T) {
	requests := 0
	resolver, server := newTestResolver(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		io.WriteString(w, `<html><body>
			<a href="https://docs.google.com/document/d/ep-sources/edit">Sources</a>
		</body></html>`)
	}))
	defer server.Close()

	for i := 0; i < 3; i++ {
		if _, err := resolver.FindSourceDocument(context.Background(), server.URL+"/episodes/42"); err != nil {
			t.Fatalf("Expected no error on fetch %d, got: %v", i, err)
		}
	}

	if requests != 1 {
		t.Errorf("Expected 1 origin request, got: %d", requests)
	}
}

func TestExtractReferences(t *testing.T) {
	resolver, server := newTestResolver(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/document/d/ep-sources/export" && r.URL.Query().Get("format") == "html" {
			io.WriteString(w, `<html><body>
				<a href="https://www.amazon.com/Widget-History/dp/0123456789">Widget History</a>
				<a href="https://www.amazon.com/dp/B00ABCDEF0">Another Book</a>
			</body></html>`)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	refs, err := resolver.ExtractReferences(context.Background(), "https://docs.google.com/document/d/ep-sources/edit")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("Expected 2 references, got: %d (%v)", len(refs), refs)
	}
}

func TestExtractReferencesFallsBackToNextFormat(t *testing.T) {
	var formats []string
	resolver, server := newTestResolver(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		formats = append(formats, format)
		if format == "html" {
			// Renders, but with no product links in it.
			io.WriteString(w, `<html><body><p>Loading…</p></body></html>`)
			return
		}
		io.WriteString(w, "See https://www.amazon.com/dp/0123456789 for more.")
	}))
	defer server.Close()

	refs, err := resolver.ExtractReferences(context.Background(), "https://docs.google.com/document/d/ep-sources/edit")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("Expected 1 reference from fallback format, got: %d (%v)", len(refs), refs)
	}
	if len(formats) != 2 || formats[0] != "html" || formats[1] != "txt" {
		t.Errorf("Expected html then txt, got: %v", formats)
	}
}

func TestExtractReferencesExhaustsFormats(t *testing.T) {
	resolver, server := newTestResolver(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Minified pages with no references at all.
		io.WriteString(w, "nothing to see")
	}))
	defer server.Close()

	_, err := resolver.ExtractReferences(context.Background(), "https://docs.google.com/document/d/ep-sources/edit")
	if !errors.Is(err, ErrNoReferences) {
		t.Errorf("Expected ErrNoReferences, got: %v", err)
	}
}

func TestExtractReferencesBadDocumentURL(t *testing.T) {
	resolver, server := newTestResolver(http.NotFoundHandler())
	defer server.Close()

	_, err := resolver.ExtractReferences(context.Background(), "https://example.com/not-a-document")
	if err == nil {
		t.Fatal("Expected error for URL without a document id")
	}
}
