package feed

import (
	"time"
)

// Item is one normalized entry from the podcast feed. Immutable once
// parsed; re-fetching the feed produces a fresh, comparable set.
type Item struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Link          string    `json:"link"`
	Description   string    `json:"description"`
	PublishedAt   time.Time `json:"publishedAt"`
	SeasonNumber  int       `json:"seasonNumber,omitempty"`
	EpisodeNumber int       `json:"episodeNumber,omitempty"`
}
