package books

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"bookscout/app/retry"
	"bookscout/app/urlguard"
)

const defaultOpenLibraryBase = "https://openlibrary.org"

// openLibraryClient queries the Open Library search API.
type openLibraryClient struct {
	fetcher *urlguard.Fetcher
	baseURL string
}

type openLibraryDoc struct {
	Title      string   `json:"title"`
	AuthorName []string `json:"author_name"`
	CoverID    int      `json:"cover_i"`
	Subject    []string `json:"subject"`
	Key        string   `json:"key"`
}

type openLibraryResponse struct {
	NumFound int              `json:"numFound"`
	Docs     []openLibraryDoc `json:"docs"`
}

func (c *openLibraryClient) searchByISBN(ctx context.Context, isbn string) ([]openLibraryDoc, error) {
	return c.search(ctx, url.Values{"isbn": {isbn}, "limit": {"5"}})
}

func (c *openLibraryClient) searchByTitle(ctx context.Context, title string) ([]openLibraryDoc, error) {
	return c.search(ctx, url.Values{"title": {title}, "limit": {"5"}})
}

func (c *openLibraryClient) search(ctx context.Context, params url.Values) ([]openLibraryDoc, error) {
	searchURL := fmt.Sprintf("%s/search.json?%s", c.baseURL, params.Encode())

	if validated := c.fetcher.Guard().Validate(searchURL); !validated.Valid {
		return nil, fmt.Errorf("URL rejected by guard: %s", validated.Reason)
	}

	var body []byte
	err := retry.Do(ctx, fetchRetry, func(ctx context.Context) error {
		resp, err := c.fetcher.SafeFetch(ctx, searchURL)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("catalog API rate limited: %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("catalog API HTTP error: %d %s", resp.StatusCode, resp.Status)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read catalog API response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog API: %w", err)
	}

	var parsed openLibraryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse catalog API response: %w", err)
	}

	return parsed.Docs, nil
}

// pickDoc prefers an exact (case-insensitive) title match, falling
// back to the first hit.
func pickDoc(docs []openLibraryDoc, wantTitle string) *openLibraryDoc {
	if len(docs) == 0 {
		return nil
	}

	if wantTitle != "" {
		want := strings.ToLower(strings.TrimSpace(wantTitle))
		for i := range docs {
			if strings.ToLower(strings.TrimSpace(docs[i].Title)) == want {
				return &docs[i]
			}
		}
	}

	return &docs[0]
}

func (d *openLibraryDoc) coverURL() string {
	if d.CoverID <= 0 {
		return ""
	}
	return fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-M.jpg", d.CoverID)
}
