package feed

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"

	"github.com/mmcdole/gofeed"

	"bookscout/app/urlguard"
)

// Reader fetches the configured syndication feed through the URL guard
// and normalizes it into a list of items, newest first.
type Reader struct {
	fetcher      *urlguard.Fetcher
	feedURL      string
	gofeedParser *gofeed.Parser
}

func NewReader(fetcher *urlguard.Fetcher, feedURL string) *Reader {
	return &Reader{
		fetcher:      fetcher,
		feedURL:      feedURL,
		gofeedParser: gofeed.NewParser(),
	}
}

func (r *Reader) Fetch(ctx context.Context) ([]Item, error) {
	resp, err := r.fetcher.SafeFetch(ctx, r.feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error fetching feed: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	return r.Parse(data)
}

// Parse normalizes raw feed XML into items. Split from Fetch so the
// parsing path is testable without a network.
func (r *Reader) Parse(data []byte) ([]Item, error) {
	parsed, err := r.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		items = append(items, r.normalizeItem(item))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	return items, nil
}

func (r *Reader) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		ID:          cmp.Or(item.GUID, item.Link),
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
	}

	if item.PublishedParsed != nil {
		normalized.PublishedAt = *item.PublishedParsed
	}

	if item.ITunesExt != nil {
		if season, err := strconv.Atoi(item.ITunesExt.Season); err == nil {
			normalized.SeasonNumber = season
		}
		if episode, err := strconv.Atoi(item.ITunesExt.Episode); err == nil {
			normalized.EpisodeNumber = episode
		}
	}

	// Some feeds only carry numbering in the title.
	if normalized.SeasonNumber == 0 || normalized.EpisodeNumber == 0 {
		season, episode := numbersFromTitle(item.Title)
		if normalized.SeasonNumber == 0 {
			normalized.SeasonNumber = season
		}
		if normalized.EpisodeNumber == 0 {
			normalized.EpisodeNumber = episode
		}
	}

	return normalized
}

var (
	seasonPattern  = regexp.MustCompile(`(?i)season\s+(\d+)`)
	episodePattern = regexp.MustCompile(`(?i)episode\s+(\d+)`)
)

func numbersFromTitle(title string) (int, int) {
	season := 0
	episode := 0

	if m := seasonPattern.FindStringSubmatch(title); m != nil {
		season, _ = strconv.Atoi(m[1])
	}
	if m := episodePattern.FindStringSubmatch(title); m != nil {
		episode, _ = strconv.Atoi(m[1])
	}

	return season, episode
}
