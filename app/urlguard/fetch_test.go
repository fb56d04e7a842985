package urlguard

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestFetcher(handler http.Handler) (*Fetcher, *httptest.Server) {
	server := httptest.NewServer(handler)

	policy := DefaultPolicy()
	policy.AllowLoopback = true
	fetcher := NewFetcher(NewGuard(policy), server.Client(), "Bookscout-Test/1.0")

	return fetcher, server
}

func TestSafeFetchSetsUserAgent(t *testing.T) {
	var gotUserAgent string
	fetcher, server := newTestFetcher(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	resp, err := fetcher.SafeFetch(context.Background(), server.URL+"/page")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("Expected body 'ok', got: %s", body)
	}
	if gotUserAgent != "Bookscout-Test/1.0" {
		t.Errorf("Expected identifying user agent, got: %s", gotUserAgent)
	}
}

func TestSafeFetchRejectsBeforeDialing(t *testing.T) {
	requested := false
	fetcher, server := newTestFetcher(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = true
	}))
	defer server.Close()

	_, err := fetcher.SafeFetch(context.Background(), "http://169.254.169.254/latest/meta-data/")
	if err == nil {
		t.Fatal("Expected error for metadata endpoint")
	}
	if requested {
		t.Error("Expected no request to be made for a rejected URL")
	}
}

func TestSafeFetchValidatesRedirectTargets(t *testing.T) {
	fetcher, server := newTestFetcher(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bounce":
			http.Redirect(w, r, "http://169.254.169.254/latest/meta-data/", http.StatusFound)
		case "/hop":
			http.Redirect(w, r, "/target", http.StatusFound)
		case "/target":
			io.WriteString(w, "landed")
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	_, err := fetcher.SafeFetch(context.Background(), server.URL+"/bounce")
	if err == nil {
		t.Fatal("Expected redirect to metadata endpoint to be rejected")
	}
	if !strings.Contains(err.Error(), "redirect target rejected by guard") {
		t.Errorf("Expected guard rejection of the redirect hop, got: %v", err)
	}

	// Redirects to targets the guard accepts still work.
	resp, err := fetcher.SafeFetch(context.Background(), server.URL+"/hop")
	if err != nil {
		t.Fatalf("Expected allowed redirect to be followed, got: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "landed" {
		t.Errorf("Expected redirect target body, got: %s", body)
	}
}

func TestExists(t *testing.T) {
	fetcher, server := newTestFetcher(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Expected HEAD request, got: %s", r.Method)
		}
		if r.URL.Path == "/present.jpg" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if !fetcher.Exists(context.Background(), server.URL+"/present.jpg") {
		t.Error("Expected present.jpg to exist")
	}
	if fetcher.Exists(context.Background(), server.URL+"/absent.jpg") {
		t.Error("Expected absent.jpg to not exist")
	}
	if fetcher.Exists(context.Background(), "http://127.0.0.1:1/absent.jpg") {
		t.Error("Expected unreachable URL to not exist")
	}
}
